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

//go:build linux

package reactor

import "net"

// resolveIPv4 resolves host to its 4-byte IPv4 form. Backend host
// strings are normally already dotted-quad (the Config Engine resolves
// names once at load time and stores the result), so this is a cache
// hit through the stdlib resolver's own cache in the common case; a
// bare IP address never touches the resolver at all.
func resolveIPv4(host string) ([4]byte, error) {
	var out [4]byte
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			copy(out[:], v4)
			return out, nil
		}
		return out, ErrorFDOutOfRange.Error(nil)
	}

	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return out, err
	}
	v4 := addr.IP.To4()
	if v4 == nil {
		return out, ErrorFDOutOfRange.Error(nil)
	}
	copy(out[:], v4)
	return out, nil
}
