package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/bridge/internal/cache/distributed"
	"github.com/wisbric/bridge/internal/cache/durable"
	"github.com/wisbric/bridge/internal/cache/memory"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, pgxmock.PgxPoolIface, *miniredis.Miniredis) {
	t.Helper()
	l1, err := memory.New(64)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l2 := distributed.New(rdb)

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	l3 := durable.NewWithPool(mock)

	return New(l1, l2, l3, time.Minute, silentLogger(), true), mock, mr
}

func TestSetWritesL3First(t *testing.T) {
	e, mock, _ := newTestEngine(t)
	mock.ExpectExec(`INSERT INTO storage_cache`).
		WithArgs("k1", []byte("v1"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := e.Set(context.Background(), "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}

	// write-through: L1 should now have the value without consulting L3 again.
	if v, ok := e.l1.Get("k1"); !ok || string(v) != "v1" {
		t.Fatalf("expected L1 to be warmed after Set, got %q, %v", v, ok)
	}
}

func TestSetPropagatesL3Failure(t *testing.T) {
	e, mock, _ := newTestEngine(t)
	mock.ExpectExec(`INSERT INTO storage_cache`).
		WillReturnError(context.DeadlineExceeded)

	err := e.Set(context.Background(), "k1", []byte("v1"), time.Minute)
	if err == nil {
		t.Fatal("expected error propagated from L3 failure")
	}
	if _, ok := e.l1.Get("k1"); ok {
		t.Fatal("L1 must not be touched when L3 write fails")
	}
}

func TestGetFallsThroughTiers(t *testing.T) {
	e, mock, _ := newTestEngine(t)

	rows := pgxmock.NewRows([]string{"data", "expires_at"}).AddRow([]byte("v1"), nil)
	mock.ExpectQuery(`SELECT data, expires_at FROM storage_cache WHERE cache_key = \$1`).
		WithArgs("k1").WillReturnRows(rows)

	v, layer, cacheHit, err := e.Get(context.Background(), "k1")
	if err != nil || string(v) != "v1" || layer != LayerSource || cacheHit {
		t.Fatalf("Get = %q, %v, %v, %v", v, layer, cacheHit, err)
	}

	// L3 hit must warm L1 and L2.
	if _, ok := e.l1.Get("k1"); !ok {
		t.Fatal("expected L1 warmed after L3 hit")
	}
	if ok := e.l2.Exists(context.Background(), "k1"); !ok {
		t.Fatal("expected L2 warmed after L3 hit")
	}

	// Second read should now be served from L1 without touching L3.
	v2, layer2, hit2, err := e.Get(context.Background(), "k1")
	if err != nil || string(v2) != "v1" || layer2 != LayerMemory || !hit2 {
		t.Fatalf("second Get = %q, %v, %v, %v", v2, layer2, hit2, err)
	}
}

func TestGetNotFound(t *testing.T) {
	e, mock, _ := newTestEngine(t)
	mock.ExpectQuery(`SELECT data, expires_at FROM storage_cache WHERE cache_key = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"data", "expires_at"}))

	_, layer, hit, err := e.Get(context.Background(), "missing")
	if err != nil || layer != LayerNone || hit {
		t.Fatalf("Get = layer=%v hit=%v err=%v; want not-found", layer, hit, err)
	}
}

func TestDeleteSwallowsCacheFailuresButReturnsDurableError(t *testing.T) {
	e, mock, _ := newTestEngine(t)
	_ = e.l1.Set("k1", []byte("v1"), 0)
	mock.ExpectExec(`DELETE FROM storage_cache WHERE cache_key = \$1`).
		WithArgs("k1").
		WillReturnError(context.DeadlineExceeded)

	if err := e.Delete(context.Background(), "k1"); err == nil {
		t.Fatal("expected durable delete error to propagate")
	}
	if _, ok := e.l1.Get("k1"); ok {
		t.Fatal("expected L1 entry removed regardless of durable error")
	}
}

func TestHealth(t *testing.T) {
	e, mock, _ := newTestEngine(t)
	mock.ExpectPing()

	h := e.Health(context.Background())
	if !h[string(LayerMemory)] {
		t.Error("expected memory tier healthy")
	}
	if !h[string(LayerRedis)] {
		t.Error("expected redis tier healthy")
	}
	if !h[string(LayerSource)] {
		t.Error("expected postgres tier healthy")
	}
}
