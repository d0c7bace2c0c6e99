package pause

import (
	"context"
	"testing"
	"time"
)

func TestWait_OpenGate(t *testing.T) {
	c := NewController()
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("Wait on open gate should not block or fail: %v", err)
	}
}

func TestPauseBlocksUntilResume(t *testing.T) {
	c := NewController()
	c.Pause()
	if !c.Paused() {
		t.Fatal("gate should report paused")
	}

	released := make(chan error, 1)
	go func() {
		released <- c.Wait(context.Background())
	}()

	select {
	case <-released:
		t.Fatal("Wait returned while gate was paused")
	case <-time.After(50 * time.Millisecond):
	}

	c.Resume()
	select {
	case err := <-released:
		if err != nil {
			t.Fatalf("Wait after resume: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Resume")
	}
	if c.Paused() {
		t.Error("gate should not report paused after Resume")
	}
}

func TestPause_Idempotent(t *testing.T) {
	c := NewController()
	c.Pause()
	c.Pause() // no-op
	c.Resume()
	if c.Paused() {
		t.Error("gate should be open after single Resume")
	}
	c.Resume() // no-op on open gate
}

func TestResume_WithoutPause(t *testing.T) {
	c := NewController()
	c.Resume() // must not panic
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("Wait should pass: %v", err)
	}
}

func TestWait_ContextCancel(t *testing.T) {
	c := NewController()
	c.Pause()

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() {
		released <- c.Wait(ctx)
	}()

	cancel()
	select {
	case err := <-released:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe cancellation")
	}

	// The gate stays armed; cancellation is not a resume.
	if !c.Paused() {
		t.Error("gate should still be paused after a cancelled Wait")
	}
}

func TestDestroy_ReleasesWaiters(t *testing.T) {
	c := NewController()
	c.Pause()

	released := make(chan error, 1)
	go func() {
		released <- c.Wait(context.Background())
	}()

	c.Destroy()
	select {
	case err := <-released:
		if err != nil {
			t.Fatalf("Wait after Destroy: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Destroy did not release waiter")
	}

	// Destroyed gate can never be armed again.
	c.Pause()
	if c.Paused() {
		t.Error("destroyed gate should ignore Pause")
	}
	if err := c.Wait(context.Background()); err != nil {
		t.Fatalf("Wait on destroyed gate: %v", err)
	}
}
