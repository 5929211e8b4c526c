package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_SerializesSameSession(t *testing.T) {
	l := NewLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("s1")
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.False(t, l.Busy("s1"))
}

func TestLocker_DifferentSessionsDoNotBlock(t *testing.T) {
	l := NewLocker()
	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := l.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestLocker_TryLockSkipsBusySessions(t *testing.T) {
	l := NewLocker()

	unlock := l.Lock("s1")
	_, ok := l.TryLock("s1")
	assert.False(t, ok, "locked")
	unlock()

	unpin := l.Pin("s1")
	_, ok = l.TryLock("s1")
	assert.False(t, ok, "pinned")
	unpin()
	unpin()

	release, ok := l.TryLock("s1")
	require.True(t, ok)
	assert.True(t, l.Busy("s1"))
	release()
	assert.False(t, l.Busy("s1"))
}
