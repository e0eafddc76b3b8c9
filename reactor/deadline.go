/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

package reactor

import "container/heap"

// deadlineEntry is one pending idle-timeout/connect-timeout watch.
type deadlineEntry struct {
	deadline int64 // unix nano
	handle   Handle
	index    int // heap.Interface bookkeeping
}

// deadlineHeap is a per-worker min-heap of pending timeouts, ordered by
// deadline. No corpus library provides a generic priority queue, so
// this sits on stdlib container/heap (see DESIGN.md's standard-library
// justification section).
type deadlineHeap []*deadlineEntry

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*deadlineEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// DeadlineQueue is the exported wrapper a Worker uses to schedule and
// cancel per-Handle timeouts without exposing container/heap's raw
// interface to callers.
type DeadlineQueue struct {
	h       deadlineHeap
	byHand  map[Handle]*deadlineEntry
}

// NewDeadlineQueue returns an empty queue.
func NewDeadlineQueue() *DeadlineQueue {
	return &DeadlineQueue{byHand: make(map[Handle]*deadlineEntry)}
}

// Schedule arms (or re-arms, replacing any existing watch) a deadline
// for handle at deadlineUnixNano.
func (q *DeadlineQueue) Schedule(handle Handle, deadlineUnixNano int64) {
	if e, ok := q.byHand[handle]; ok {
		e.deadline = deadlineUnixNano
		heap.Fix(&q.h, e.index)
		return
	}
	e := &deadlineEntry{deadline: deadlineUnixNano, handle: handle}
	heap.Push(&q.h, e)
	q.byHand[handle] = e
}

// Cancel removes handle's pending deadline, if any.
func (q *DeadlineQueue) Cancel(handle Handle) {
	e, ok := q.byHand[handle]
	if !ok {
		return
	}
	heap.Remove(&q.h, e.index)
	delete(q.byHand, handle)
}

// Expired pops and returns every handle whose deadline is <= nowUnixNano.
func (q *DeadlineQueue) Expired(nowUnixNano int64) []Handle {
	var out []Handle
	for q.h.Len() > 0 && q.h[0].deadline <= nowUnixNano {
		e := heap.Pop(&q.h).(*deadlineEntry)
		delete(q.byHand, e.handle)
		out = append(out, e.handle)
	}
	return out
}

// NextDeadline returns the soonest pending deadline and true, or
// (0, false) if the queue is empty. A Worker uses this to compute the
// epoll_wait timeout for its next iteration.
func (q *DeadlineQueue) NextDeadline() (int64, bool) {
	if q.h.Len() == 0 {
		return 0, false
	}
	return q.h[0].deadline, true
}

// Len reports the number of pending watches.
func (q *DeadlineQueue) Len() int { return q.h.Len() }
