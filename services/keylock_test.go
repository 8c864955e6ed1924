package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyLocker_SerializesPerKeyAndForgetsIdleKeys(t *testing.T) {
	req := require.New(t)
	locks := newKeyLocker()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("room")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	req.Equal(100, counter)
	req.Equal(0, locks.size())
}

func TestKeyLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locks := newKeyLocker()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()
	<-done
	require.Equal(t, 1, locks.size())
}
