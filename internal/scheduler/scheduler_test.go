package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestRegister_BadSpec(t *testing.T) {
	s := New(context.Background(), nil)
	if err := s.Register("warm", "not a cron spec", func(context.Context) {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestScheduler_RunsJob(t *testing.T) {
	s := New(context.Background(), nil)

	ran := make(chan struct{}, 1)
	err := s.Register("tick", "* * * * * *", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run within 3s")
	}
}

func TestScheduler_SkipsJobAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(ctx, nil)
	ran := make(chan struct{}, 1)
	err := s.Register("tick", "* * * * * *", func(context.Context) {
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
		t.Fatal("job ran despite cancelled root context")
	case <-time.After(1500 * time.Millisecond):
	}
}
