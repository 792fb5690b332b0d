package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get = %q, %v, %v; want v, true, nil", v, ok, err)
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestClient(t)
	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("Get = ok=%v err=%v; want ok=false err=nil", ok, err)
	}
}

func TestTTLExpiry(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected key to expire")
	}
}

func TestDisconnectedClientIsNoOp(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set on nil client: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("Get on nil client = ok=%v err=%v", ok, err)
	}
	if c.Exists(ctx, "k") {
		t.Fatal("Exists on nil client should be false")
	}
	if c.Ping(ctx) {
		t.Fatal("Ping on nil client should be false")
	}
	c.Delete(ctx, "k") // must not panic
}

func TestDeleteAndExists(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if !c.Exists(ctx, "k") {
		t.Fatal("expected key to exist")
	}
	c.Delete(ctx, "k")
	if c.Exists(ctx, "k") {
		t.Fatal("expected key removed")
	}
}

func TestPing(t *testing.T) {
	c, _ := newTestClient(t)
	if !c.Ping(context.Background()) {
		t.Fatal("expected ping to succeed against miniredis")
	}
}
