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

// Package types declares the narrow Pool contract config.Config's
// components use to register themselves with whatever health-check/metrics
// aggregator the embedding application wires in. The aggregator itself
// (walking components, exposing a status page) is outside this repository's
// data-plane scope; this package only fixes the shape components register
// against.
package types

// Pool is a registry of named, monitorable components. A concrete
// implementation is supplied by the embedding application; components
// never construct one themselves, only register into it.
type Pool interface {
	// Add registers a named monitorable with the pool. Calling Add twice
	// with the same name replaces the prior registration.
	Add(name string, mon Monitorable)

	// Remove unregisters name, if present.
	Remove(name string)
}

// Monitorable is the minimal status a registered component exposes: a
// human string ("up", "down: connection refused", ...) and whether it
// should be counted healthy.
type Monitorable interface {
	Name() string
	Healthy() bool
	Status() string
}

// FuncPool is provided by the embedding application at component-init
// time (config.Config.RegisterMonitorPool); calling it returns the
// live Pool instance.
type FuncPool func() Pool
