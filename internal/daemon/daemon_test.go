package daemon

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"lexcase/internal/api"
	"lexcase/internal/engine"
	"lexcase/internal/stage"
	"lexcase/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	d, _, cfg := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	// A second daemon over the same data directory cannot take the lock.
	other, err := New(cfg, testsupport.MustOpenStore(t, cfg), engine.New(stage.Default(), nil), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := other.Start(ctx); err == nil {
		other.Stop()
		t.Fatal("expected lock contention")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := other.Start(ctx); err != nil {
		t.Fatalf("lock should be free after stop: %v", err)
	}
	other.Stop()
}

func TestDaemonServeShutsDownOnCancel(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx, listener) }()

	client := api.NewClient("http://"+listener.Addr().String(), "", &http.Client{Timeout: 5 * time.Second})
	stages, err := client.Stages(context.Background())
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(stages) != 12 {
		t.Fatalf("unexpected stage count %d", len(stages))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
