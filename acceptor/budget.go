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

package acceptor

import (
	fdutil "github.com/megallm/ultrabalancer/ioutils/fileDescriptor"
)

// DefaultGlobalMax derives a conservative global active-connection cap
// from the process's file-descriptor rlimit (grounded on
// ioutils/fileDescriptor.SystemFileDescriptor, SPEC_FULL §4.2's
// "global active-connection count"). Each proxied connection holds two
// fds (client + backend) plus headroom for listeners, the control
// socket and logging, so the cap is the soft rlimit divided by four.
func DefaultGlobalMax() int64 {
	cur, _, err := fdutil.SystemFileDescriptor(0)
	if err != nil || cur <= 0 {
		return 0
	}
	return int64(cur / 4)
}
