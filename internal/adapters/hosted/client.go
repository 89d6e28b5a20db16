// Package hosted talks to the hosted backend: a PostgREST-style table API under /rest/v1 and
// an object store under /storage/v1.
package hosted

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"alquiler_floripa/internal/adapters/observability"
	"alquiler_floripa/internal/domain"
)

type Client struct {
	base string
	key  string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("remote URL is required")
	}
	if key == "" {
		return nil, fmt.Errorf("remote API key is required")
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		key:  key,
		hc:   &http.Client{Timeout: 15 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

// apiError is the error body returned by the table API.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

type request struct {
	op      string // metrics label and error context
	method  string
	url     string
	body    any
	raw     []byte // sent as-is when set, with contentType
	ctype   string
	headers map[string]string
}

// do sends req with client-side rate limiting and decodes a JSON response into out.
// Idempotent methods are retried on network errors, 429 and transient 5xx, honoring
// Retry-After when provided.
func (c *Client) do(ctx context.Context, req request, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	payload := req.raw
	ctype := req.ctype
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return err
		}
		payload, ctype = b, "application/json"
	}

	attempts := 1
	if req.method != http.MethodPost {
		attempts = 4
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		// build a fresh request each attempt
		hr, err := http.NewRequestWithContext(ctx, req.method, req.url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		hr.Header.Set("apikey", c.key)
		hr.Header.Set("Authorization", "Bearer "+c.key)
		hr.Header.Set("Accept", "application/json")
		hr.Header.Set("User-Agent", "alquiler-floripa/1.0")
		if ctype != "" {
			hr.Header.Set("Content-Type", ctype)
		}
		for k, v := range req.headers {
			hr.Header.Set(k, v)
		}

		start := time.Now()
		resp, err := c.hc.Do(hr)
		if err != nil {
			observability.ObserveRemote("rest", req.op, "error", time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = &domain.RemoteError{Op: req.op, Message: err.Error(), Kind: domain.ErrUnreachable}
			if i < attempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveRemote("rest", req.op, strconv.Itoa(resp.StatusCode), time.Since(start))

		switch {
		case resp.StatusCode == http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			return json.NewDecoder(resp.Body).Decode(out)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			wait := retryAfter(resp)
			lastErr = classify(req.op, resp)
			if wait == 0 {
				wait = backoff(i)
			}
			if i < attempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			return classify(req.op, resp)
		}
	}
	return lastErr
}

// classify reads the error body of resp and maps it to a domain error kind.
func classify(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	var ae apiError
	_ = json.Unmarshal(b, &ae)
	msg := ae.Message
	if msg == "" {
		msg = strings.TrimSpace(string(b))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	re := &domain.RemoteError{Op: op, Code: ae.Code, Message: msg}

	switch {
	case ae.Code == "42P01" || ae.Code == "PGRST205" || ae.Code == "PGRST202":
		re.Kind = domain.ErrRelationMissing
	case ae.Code == "PGRST116":
		re.Kind = domain.ErrNotFound
	case ae.Code == "42501" || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		re.Kind = domain.ErrPermission
	case resp.StatusCode == http.StatusNotFound:
		re.Kind = domain.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		re.Kind = domain.ErrUnreachable
	}
	if re.Code == "" {
		re.Code = strconv.Itoa(resp.StatusCode)
	}
	return re
}

// Probe reads at most one banner id. A missing table still proves the backend answers.
func (c *Client) Probe(ctx context.Context) error {
	u := c.base + "/rest/v1/" + string(domain.Banners) + "?select=id&limit=1"
	var rows []json.RawMessage
	return c.do(ctx, request{op: "probe", method: http.MethodGet, url: u, headers: map[string]string{"Prefer": "count=exact"}}, &rows)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

var errNoRows = errors.New("no rows returned")
