package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostGetOrder(t *testing.T) {
	q := New()
	q.Post(1)
	q.Post(2)
	q.Post(3)

	for _, want := range []int{1, 2, 3} {
		got, ok := q.Get()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
}

func TestGetBlocksUntilPost(t *testing.T) {
	q := New()
	done := make(chan interface{}, 1)
	go func() {
		item, ok := q.Get()
		if ok {
			done <- item
		}
	}()

	select {
	case <-done:
		t.Fatal("Get returned before any item was posted")
	case <-time.After(50 * time.Millisecond):
	}

	q.Post("hello")
	select {
	case item := <-done:
		require.Equal(t, "hello", item)
	case <-time.After(time.Second):
		t.Fatal("Get never returned after Post")
	}
}

func TestStopWakesAllWaiters(t *testing.T) {
	q := New()
	const n = 8
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		go func() {
			_, ok := q.Get()
			results <- ok
		}()
	}
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	for i := 0; i < n; i++ {
		select {
		case ok := <-results:
			require.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("waiter never woke after Stop")
		}
	}
}

func TestGetAfterStopReturnsImmediately(t *testing.T) {
	q := New()
	q.Post("queued before stop")
	q.Stop()

	item, ok := q.Get()
	require.False(t, ok)
	require.Nil(t, item)
}
