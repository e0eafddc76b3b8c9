/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package semaphore provides a context-aware worker fan-out helper: a main
// goroutine reserves its own slot, spawns bounded (or unbounded, weight 0)
// workers, and waits for all of them to finish or the context to be
// canceled.
package semaphore

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Semaphore bounds concurrent workers sharing one logical unit of work.
type Semaphore interface {
	// NewWorker reserves a slot for a new worker, blocking if the weight is
	// exhausted. Returns an error if the context is canceled first.
	NewWorker() error

	// DeferWorker releases the slot reserved by NewWorker. Call as a defer
	// in the worker goroutine.
	DeferWorker()

	// DeferMain releases the slot implicitly reserved for the caller of
	// NewSemaphoreWithContext. Call as a defer right after construction.
	DeferMain()

	// WaitAll blocks until every reserved slot (main included) has been
	// released, or the context is canceled.
	WaitAll() error
}

type sem struct {
	ctx context.Context
	w   *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewSemaphoreWithContext returns a Semaphore bound to ctx. weight is the
// maximum number of concurrent workers (main slot included); 0 or negative
// means unbounded.
func NewSemaphoreWithContext(ctx context.Context, weight int64) Semaphore {
	if weight <= 0 {
		weight = 1 << 30
	}

	s := &sem{ctx: ctx, w: semaphore.NewWeighted(weight)}
	s.wg.Add(1)
	_ = s.w.Acquire(ctx, 1)

	return s
}

func (s *sem) NewWorker() error {
	if e := s.w.Acquire(s.ctx, 1); e != nil {
		return e
	}
	s.wg.Add(1)
	return nil
}

func (s *sem) DeferWorker() {
	s.w.Release(1)
	s.wg.Done()
}

func (s *sem) DeferMain() {
	s.w.Release(1)
	s.wg.Done()
}

func (s *sem) WaitAll() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}
