package router_test

import (
	"context"
	"testing"
	"time"

	"github.com/ZeelJavia/txnzero/internal/router"
)

func TestRouter_ReadsGoToReplica(t *testing.T) {
	r := router.New("primary", "replica", 500*time.Millisecond)

	if got := r.Read(context.Background()); got != "replica" {
		t.Errorf("expected replica, got %s", got)
	}

	if got := r.Write(context.Background()); got != "primary" {
		t.Errorf("expected primary, got %s", got)
	}

	if got := r.Primary(); got != "primary" {
		t.Errorf("expected primary, got %s", got)
	}
}

func TestRouter_ReadAfterWritePinsToPrimary(t *testing.T) {
	r := router.New("primary", "replica", time.Minute)
	ctx := router.WithCaller(context.Background(), "user-1")

	r.Write(ctx)

	if got := r.Read(ctx); got != "primary" {
		t.Errorf("read after write should hit primary, got %s", got)
	}

	// A different caller is unaffected by user-1's pin.
	other := router.WithCaller(context.Background(), "user-2")
	if got := r.Read(other); got != "replica" {
		t.Errorf("unrelated caller should read replica, got %s", got)
	}
}

func TestRouter_PinExpiresAfterStalenessWindow(t *testing.T) {
	r := router.New("primary", "replica", 10*time.Millisecond)
	ctx := router.WithCaller(context.Background(), "user-1")

	r.Write(ctx)
	time.Sleep(20 * time.Millisecond)

	if got := r.Read(ctx); got != "replica" {
		t.Errorf("pin should expire with the staleness window, got %s", got)
	}
}

func TestRouter_ZeroStalenessDisablesPinning(t *testing.T) {
	r := router.New("primary", "replica", 0)
	ctx := router.WithCaller(context.Background(), "user-1")

	r.Write(ctx)

	if got := r.Read(ctx); got != "replica" {
		t.Errorf("expected replica with pinning disabled, got %s", got)
	}
}
