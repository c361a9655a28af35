package triggers

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEngineTriggerFireUnblocksWait(t *testing.T) {
	trig := NewEngineTrigger()
	defer trig.Close()

	done := make(chan error, 1)
	go func() { done <- trig.Wait(context.Background()) }()

	trig.Fire()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected Wait to return nil after Fire, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Fire to unblock Wait")
	}
}

func TestEngineTriggerCoalescesPendingFires(t *testing.T) {
	trig := NewEngineTrigger()
	defer trig.Close()

	// No waiter yet; multiple fires collapse into one pending fire.
	trig.Fire()
	trig.Fire()
	trig.Fire()

	if err := trig.Wait(context.Background()); err != nil {
		t.Fatalf("Expected the pending fire to be consumed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := trig.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected no second pending fire, got %v", err)
	}
}

func TestEngineTriggerWaitHonorsContext(t *testing.T) {
	trig := NewEngineTrigger()
	defer trig.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- trig.Wait(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected cancellation to unblock Wait")
	}
}
