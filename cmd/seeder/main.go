package main

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"alquiler_floripa/internal/adapters/observability"
	"alquiler_floripa/internal/adapters/remote"
	"alquiler_floripa/internal/app"
	"alquiler_floripa/internal/catalog"
	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/shared"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	barrios, err := catalog.Neighborhoods()
	if err != nil {
		log.Fatal().Err(err).Msg("built-in catalog invalid")
	}
	log.Info().
		Str("driver", cfg.RemoteDriver).
		Int("workers", cfg.SeedWorkers).
		Int("barrios", len(barrios)).
		Msg("seeder starting")

	rem, err := remote.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("remote store setup failed")
	}
	defer rem.Close()

	if r := app.NewProber(rem.Pinger, cfg.ProbeTimeout).Probe(ctx); !r.Reachable {
		log.Fatal().Str("reason", r.Message).Msg("remote store unreachable")
	}

	svc := app.NewNeighborhoodService(rem.Neighborhoods, nil)
	workers := cfg.SeedWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var created, skipped, failed atomic.Int64

	for _, n := range barrios {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(n domain.Neighborhood) {
			defer wg.Done()
			defer sem.Release(1)

			ok, err := svc.Seed(ctx, n)
			switch {
			case err != nil:
				failed.Add(1)
				log.Warn().Str("slug", n.Slug).Err(err).Msg("seed failed")
			case ok:
				created.Add(1)
				log.Info().Str("slug", n.Slug).Msg("barrio created")
			default:
				skipped.Add(1)
				log.Debug().Str("slug", n.Slug).Msg("barrio already stored")
			}
		}(n)
	}

	wg.Wait()
	log.Info().
		Int64("created", created.Load()).
		Int64("skipped", skipped.Load()).
		Int64("failed", failed.Load()).
		Msg("seeding completed")
}
