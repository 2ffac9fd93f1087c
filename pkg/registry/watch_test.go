package registry

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_PollFiresOnModTimeChange(t *testing.T) {
	svc := newTestRoleService(t)

	// Poll manually instead of waiting on the cron schedule.
	w, err := NewWatcher(testLogger(), 0)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.fsw.Close()

	var reloads atomic.Int32
	reload := func(ctx context.Context) error {
		reloads.Add(1)
		return svc.Load(ctx)
	}
	if err := w.Watch(svc.Backing(), reload); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	w.poll()
	if got := reloads.Load(); got != 0 {
		t.Fatalf("Expected no reload before any change, got %d", got)
	}

	// Rewrite the document the way an external editor would.
	data, err := svc.Backing().Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := svc.Backing().Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := os.Chtimes(svc.Backing().Path(), future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	w.poll()
	if got := reloads.Load(); got != 1 {
		t.Fatalf("Expected one reload after change, got %d", got)
	}

	// The observed modification time is advanced, so a further poll is quiet.
	w.poll()
	if got := reloads.Load(); got != 1 {
		t.Fatalf("Expected no further reloads, got %d", got)
	}
}

func TestWatcher_NotificationFiresReload(t *testing.T) {
	svc := newTestRoleService(t)

	w, err := NewWatcher(testLogger(), 0)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	reloaded := make(chan struct{}, 8)
	reload := func(ctx context.Context) error {
		reloaded <- struct{}{}
		return nil
	}
	if err := w.Watch(svc.Backing(), reload); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	w.Start()
	defer w.Stop(context.Background())

	data, err := svc.Backing().Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := svc.Backing().Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for notification-driven reload")
	}
}
