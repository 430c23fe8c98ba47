package core

import (
	"context"
	"testing"
	"time"

	"github.com/joelguittet/go-axon/pkg/amp"
)

func TestCorrelator_IdsAreUniqueAndWellFormed(t *testing.T) {
	c := NewCorrelator()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := c.NextID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestCorrelator_DeliverWakesWaiter(t *testing.T) {
	c := NewCorrelator()
	id := c.NextID()
	ch := c.Register(id)

	reply := amp.New(amp.NewString("ok"))
	if !c.Deliver(id, reply) {
		t.Fatal("expected a pending slot to exist")
	}

	got, err := c.Wait(context.Background(), id, ch, time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if s, _ := got.Fields[0].String(); s != "ok" {
		t.Fatalf("got %q, want ok", s)
	}
}

func TestCorrelator_LateReplyIsDropped(t *testing.T) {
	c := NewCorrelator()
	id := c.NextID()
	ch := c.Register(id)

	_, err := c.Wait(context.Background(), id, ch, 10*time.Millisecond)
	if err != ErrReplyTimeout {
		t.Fatalf("got %v, want ErrReplyTimeout", err)
	}

	if c.Deliver(id, amp.New()) {
		t.Fatal("expected no pending slot for a reply arriving after the deadline")
	}
}

func TestCorrelator_TeardownWakesWaiter(t *testing.T) {
	c := NewCorrelator()
	id := c.NextID()
	ch := c.Register(id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Wait(ctx, id, ch, 5*time.Second)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != ErrTeardown {
			t.Fatalf("got %v, want ErrTeardown", err)
		}
	case <-time.After(time.Second):
		t.Fatal("teardown did not wake the waiter")
	}
}
