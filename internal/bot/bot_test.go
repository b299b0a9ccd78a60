package bot

import (
	"sync"
	"testing"
	"time"
)

func TestEnqueueKeepsChatOrderAndIsolatesChats(t *testing.T) {
	b := testBot()

	release := make(chan struct{})
	otherDone := make(chan struct{})

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	b.enqueue(1, func() {
		<-release
		record("1a")
	})
	b.enqueue(1, func() { record("1b") })
	b.enqueue(2, func() {
		record("2a")
		close(otherDone)
	})

	select {
	case <-otherDone:
	case <-time.After(2 * time.Second):
		t.Fatal("a blocked chat held up another chat")
	}

	close(release)
	b.workers.Wait()

	want := []string{"2a", "1a", "1b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	b.queueMu.Lock()
	left := len(b.queues)
	b.queueMu.Unlock()
	if left != 0 {
		t.Fatalf("idle queues left = %d, want 0", left)
	}
}

func TestEnqueueRecoversFromPanic(t *testing.T) {
	b := testBot()
	done := make(chan struct{})

	b.enqueue(7, func() { panic("boom") })
	b.enqueue(7, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queue stopped after a panicking job")
	}
	b.workers.Wait()
}
