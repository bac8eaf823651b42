package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/docingest/internal/domain"
)

func TestSchedule_RunsTask(t *testing.T) {
	p, err := New(2, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Release(time.Second) }()

	var wg sync.WaitGroup
	var n atomic.Int32
	for range 5 {
		wg.Add(1)
		for {
			err := p.Schedule(func() { defer wg.Done(); n.Add(1) })
			if err == nil {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	wg.Wait()
	if n.Load() != 5 {
		t.Errorf("ran %d tasks, want 5", n.Load())
	}
}

func TestSchedule_Overloaded(t *testing.T) {
	p, err := New(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Release(time.Second) }()

	block := make(chan struct{})
	started := make(chan struct{})
	if err := p.Schedule(func() { close(started); <-block }); err != nil {
		t.Fatal(err)
	}
	<-started

	err = p.Schedule(func() {})
	close(block)
	if !errors.Is(err, domain.ErrOverloaded) {
		t.Fatalf("expected ErrOverloaded, got %v", err)
	}
}

func TestSchedule_AfterRelease(t *testing.T) {
	p, err := New(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Release(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := p.Schedule(func() {}); !errors.Is(err, domain.ErrOverloaded) {
		t.Fatalf("expected ErrOverloaded, got %v", err)
	}
}

func TestPanicDoesNotKillPool(t *testing.T) {
	p, err := New(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Release(time.Second) }()

	done := make(chan struct{})
	_ = p.Schedule(func() { panic("boom") })
	for p.Schedule(func() { close(done) }) != nil {
		time.Sleep(time.Millisecond)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool stopped after panic")
	}
}

func TestNew_ClampsSize(t *testing.T) {
	p, err := New(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Release(time.Second) }()
	if p.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", p.Cap())
	}
}
