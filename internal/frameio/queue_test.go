package frameio

import (
	"fmt"
	"testing"
	"time"
)

func TestPushDropsOldestAtCapacity(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 4+2; i++ {
		q.Push(fmt.Sprintf("line-%d", i))
	}
	if got := q.Len(); got != 4 {
		t.Fatalf("Len() = %d, want 4", got)
	}

	first, ok := q.Pop()
	if !ok {
		t.Fatal("expected a line")
	}
	if first != "line-2" {
		t.Fatalf("oldest surviving entry = %q, want line-2 (line-0 and line-1 dropped)", first)
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := NewQueue(10)
	done := make(chan string, 1)
	go func() {
		line, ok := q.Pop()
		if !ok {
			done <- "closed"
			return
		}
		done <- line
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push("hello")

	select {
	case got := <-done:
		if got != "hello" {
			t.Fatalf("got %q, want hello", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestCloseUnblocksPop(t *testing.T) {
	q := NewQueue(10)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected Pop to report closed (false)")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock on Close")
	}
}

func TestPushAfterCloseIsDropped(t *testing.T) {
	q := NewQueue(10)
	q.Close()
	q.Push("ignored")
	if got := q.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0 after push on closed queue", got)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	q := NewQueue(10)
	q.Close()
	q.Close() // must not panic or deadlock
}
