//go:build integration || !unit

package sqlrepo_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/storage/sqlrepo"
)

// migrationsDir defaults to the repo's MySQL migrations.
func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "..", "migrations", "mysql")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=floripa"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Skipf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/floripa?parseTime=true&multiStatements=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

func TestTable_MySQL_CRUD(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()

	props, err := sqlrepo.NewTable[domain.Property](db, sqlrepo.MySQL, domain.Properties)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	in, err := domain.NormalizeProperty(map[string]any{
		"titulo": "Casa Linda", "descripcion": "Frente al mar", "tipo": "casa", "precio": "1500",
		"direccion": "Rua 1", "ciudad": "Jurerê", "provincia": "SC", "habitaciones": "3",
		"imagenes": []string{"a.jpg", "b.jpg"}, "barrio": "jurere_internacional",
	}, true)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	p, err := props.Insert(ctx, in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if p.ID == "" || p.Price != 1500 || !p.Available || len(p.Images) != 2 || p.Rooms == nil || *p.Rooms != 3 {
		t.Fatalf("unexpected insert: %+v", p)
	}
	if p.Bathrooms != nil || p.Region != nil {
		t.Fatalf("nullable columns should stay null: %+v", p)
	}

	u, err := props.Update(ctx, p.ID, domain.Fields{"disponible": false, "precio": 1800.0})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if u.Available || u.Price != 1800 || !u.CreatedAt.Equal(p.CreatedAt) || !u.UpdatedAt.After(p.UpdatedAt) {
		t.Fatalf("unexpected update: %+v", u)
	}

	got, err := props.List(ctx, domain.Query{}.Contains("ciudad", "JURE").Lte("precio", 2000))
	if err != nil || len(got) != 1 {
		t.Fatalf("List: %+v %v", got, err)
	}
	if got, _ := props.List(ctx, domain.Query{}.Eq("disponible", true)); len(got) != 0 {
		t.Fatalf("filter on bool: %+v", got)
	}

	if _, err := props.Update(ctx, "missing", domain.Fields{"titulo": "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing: %v", err)
	}
	if err := props.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := props.Delete(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestTable_MySQL_ProbeAndMissingRelation(t *testing.T) {
	db := startMySQL(t)
	ctx := context.Background()

	if err := sqlrepo.Probe(ctx, db); err != nil {
		t.Fatalf("probe on empty table: %v", err)
	}
	if _, err := db.Exec("DROP TABLE banners"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	err := sqlrepo.Probe(ctx, db)
	if !errors.Is(err, domain.ErrRelationMissing) {
		t.Fatalf("want ErrRelationMissing, got %v", err)
	}
	var re *domain.RemoteError
	if !errors.As(err, &re) || re.Code != "1146" {
		t.Fatalf("diagnostics lost: %+v", re)
	}
}
