/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

// Package aggregator coalesces many concurrent small writes into a single
// underlying writer, either as they arrive (sync) or in buffered batches
// flushed on a timer / size threshold (async). Logging hooks sitting on top
// of a shared file or socket use it so N goroutines calling Write don't each
// pay a syscall, and so the hook can detect the underlying writer going away
// (log rotation, dropped connection) and surface that as ErrClosedResources
// instead of a raw I/O error.
package aggregator

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrInvalidWriter is returned by New when Config.FctWriter is nil.
var ErrInvalidWriter = errors.New("aggregator: invalid writer function")

// ErrInvalidInstance is returned when a method is called on a nil Aggregator.
var ErrInvalidInstance = errors.New("aggregator: invalid instance")

// ErrStillRunning is returned by Start when called on an already-started
// Aggregator.
var ErrStillRunning = errors.New("aggregator: instance already running")

// ErrClosedResources is returned (wrapped) by Write once the Aggregator has
// been closed. Callers use errors.Is against it to detect that the backing
// resource needs to be reopened and the write retried against a fresh one.
var ErrClosedResources = errors.New("aggregator: resources are closed")

// Config configures an Aggregator.
type Config struct {
	// AsyncTimer, when non-zero, flushes the buffer on this interval
	// regardless of how much has accumulated.
	AsyncTimer time.Duration

	// AsyncMax, when non-zero, flushes the buffer as soon as it holds this
	// many bytes, without waiting for AsyncTimer.
	AsyncMax int64

	// AsyncFct, when non-nil, is called after every async flush.
	AsyncFct func(ctx context.Context)

	// SyncTimer, when non-zero, invokes SyncFct on this interval. Used by
	// callers to sync the underlying file and detect rotation.
	SyncTimer time.Duration

	// SyncFct is called every SyncTimer tick, independent of the
	// async buffering path.
	SyncFct func(ctx context.Context)

	// BufWriter sizes the internal write queue (number of pending Write
	// calls it can hold before Write blocks).
	BufWriter int

	// FctWriter performs the actual write against the backing resource.
	FctWriter func(p []byte) (n int, err error)
}

// Aggregator funnels concurrent Write calls into a single writer goroutine.
type Aggregator interface {
	io.Writer
	io.Closer

	// Start launches the background goroutines (writer loop, async flush
	// timer, sync timer). Returns ErrStillRunning if already started.
	Start(ctx context.Context) error

	// SetLoggerError registers a sink for errors the background goroutines
	// hit but cannot return synchronously (e.g. a flush failing).
	SetLoggerError(fct func(msg string, err ...error))

	// SetLoggerInfo registers a sink for informational messages.
	SetLoggerInfo(fct func(msg string, args ...interface{}))

	// NbWaiting reports how many writes are queued but not yet flushed.
	NbWaiting() int64

	// NbProcessing reports how many writes are currently being flushed.
	NbProcessing() int64

	// SizeWaiting reports the byte size queued but not yet flushed.
	SizeWaiting() int64

	// SizeProcessing reports the byte size currently being flushed.
	SizeProcessing() int64
}

// New returns an Aggregator built from cfg. The returned instance is not
// started; call Start before writing.
func New(ctx context.Context, cfg Config) (Aggregator, error) {
	if cfg.FctWriter == nil {
		return nil, ErrInvalidWriter
	}

	buf := cfg.BufWriter
	if buf <= 0 {
		buf = 1
	}

	a := &aggregator{
		cfg:   cfg,
		queue: make(chan []byte, buf),
		done:  make(chan struct{}),
	}

	return a, nil
}
