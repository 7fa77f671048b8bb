package memory

import (
	"sync"
	"time"
)

// sweeper runs fn every interval until stop is called.
type sweeper struct {
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func startSweeper(interval time.Duration, fn func()) *sweeper {
	s := &sweeper{quit: make(chan struct{}), done: make(chan struct{})}
	if interval <= 0 {
		close(s.done)
		return s
	}
	go func() {
		defer close(s.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-s.quit:
				return
			}
		}
	}()
	return s
}

// stop is idempotent and waits for the goroutine to exit.
func (s *sweeper) stop() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}
