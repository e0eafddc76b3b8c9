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

// Package pidcontroller implements a minimal discrete PID controller used to
// generate a non-linear, self-correcting step sequence between two values
// (e.g. retry/backoff durations) instead of a fixed linear interpolation.
package pidcontroller

import "context"

// maxSteps bounds RangeCtx so a pathological (P, I, D) triple that never
// converges cannot loop forever.
const maxSteps = 4096

// Controller holds the three classic PID gains.
type Controller struct {
	rateP float64
	rateI float64
	rateD float64
}

// New returns a Controller with the given proportional, integral and
// derivative gains.
func New(rateP, rateI, rateD float64) *Controller {
	return &Controller{rateP: rateP, rateI: rateI, rateD: rateD}
}

// RangeCtx walks from start toward end, one unit step at a time, correcting
// the step size every iteration using the PID error (end - current). It
// returns the sequence of intermediate values including start and, if
// convergence is reached, end. The walk stops early if ctx is canceled.
func (c *Controller) RangeCtx(ctx context.Context, start, end float64) []float64 {
	out := make([]float64, 0, 8)
	out = append(out, start)

	if start == end {
		return out
	}

	dir := 1.0
	if end < start {
		dir = -1.0
	}

	var (
		integral float64
		prevErr  float64
		current  = start
	)

	epsilon := (end - start) / 1e6
	if epsilon < 0 {
		epsilon = -epsilon
	}
	if epsilon == 0 {
		epsilon = 1e-9
	}

	for step := 0; step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			return out
		default:
		}

		errv := end - current
		if dir > 0 && errv <= epsilon {
			break
		}
		if dir < 0 && -errv <= epsilon {
			break
		}

		integral += errv
		derivative := errv - prevErr
		prevErr = errv

		delta := c.rateP*errv + c.rateI*integral + c.rateD*derivative
		if delta == 0 {
			delta = dir
		}

		current += delta
		if (dir > 0 && current > end) || (dir < 0 && current < end) {
			current = end
		}

		out = append(out, current)

		if current == end {
			break
		}
	}

	return out
}
