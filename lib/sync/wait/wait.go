package wait

import (
	"sync"
	"time"
)

// Wait 在 sync.WaitGroup 的基础上增加带超时的等待
type Wait struct {
	wg sync.WaitGroup
}

// WaitWithTimeout 阻塞直到计数归零或超时，超时返回 true
func (w *Wait) WaitWithTimeout(duration time.Duration) bool {
	done := make(chan struct{}, 1)
	go func() {
		w.wg.Wait()
		done <- struct{}{}
	}()

	select {
	case <-done:
		return false
	case <-time.After(duration):
		return true
	}
}

func (w *Wait) Add(delta int) {
	w.wg.Add(delta)
}

func (w *Wait) Done() {
	w.wg.Done()
}
