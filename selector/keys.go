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

package selector

import (
	"bytes"
	"strings"
)

// DeriveKey computes the client-attribute key algo needs from the raw
// material a reactor can cheaply gather: the client's source address
// and a bounded, non-consuming peek of its first bytes. peek is scanned
// with a bounded, allocation-free line walk, not a full HTTP parse
// (the core never needs more than the request line and headers to hash
// on). Falls back to sourceIP whenever peek doesn't yield what algo
// asked for, so Source-Hash/Sticky still get a stable per-client key
// and the hashed algorithms degrade to source-based keying instead of
// an empty one.
func DeriveKey(algo Algorithm, sourceIP, peek []byte, paramName, headerName string) []byte {
	switch algo {
	case URIHash:
		if p := requestPath(peek); p != nil {
			return p
		}
	case ParameterHash:
		if v := queryParam(peek, paramName); v != nil {
			return v
		}
	case HeaderHash:
		if v := headerValue(peek, headerName); v != nil {
			return v
		}
	}
	return sourceIP
}

// firstLine splits data at the first line break, HTTP-style (a trailing
// \r is trimmed from the line itself). rest is nil once no further
// break is found.
func firstLine(data []byte) (line, rest []byte) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, nil
	}
	end := idx
	if end > 0 && data[end-1] == '\r' {
		end--
	}
	return data[:end], data[idx+1:]
}

// requestLineParts returns the method and target of an HTTP request
// line, or nil if peek doesn't start with one.
func requestLineParts(peek []byte) (target []byte, ok bool) {
	line, _ := firstLine(peek)
	if line == nil {
		return nil, false
	}
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) < 2 {
		return nil, false
	}
	return parts[1], true
}

// requestPath extracts the path prefix of the request line (the target
// up to the first '?'), the Source-Hash-alike key URI-Hash balances on.
func requestPath(peek []byte) []byte {
	target, ok := requestLineParts(peek)
	if !ok || len(target) == 0 {
		return nil
	}
	if i := bytes.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	if len(target) == 0 {
		return nil
	}
	return target
}

// queryParam returns the value of name in the request line's query
// string, or nil if absent or there is no query string.
func queryParam(peek []byte, name string) []byte {
	if name == "" {
		return nil
	}
	target, ok := requestLineParts(peek)
	if !ok {
		return nil
	}
	i := bytes.IndexByte(target, '?')
	if i < 0 {
		return nil
	}
	for _, pair := range bytes.Split(target[i+1:], []byte("&")) {
		kv := bytes.SplitN(pair, []byte("="), 2)
		if len(kv) == 2 && string(kv[0]) == name {
			return kv[1]
		}
	}
	return nil
}

// headerValue scans peek's header block (everything after the request
// line, up to the blank line ending it, or wherever the peeked bytes
// ran out) for a case-insensitive match on name.
func headerValue(peek []byte, name string) []byte {
	if name == "" {
		return nil
	}
	_, rest := firstLine(peek)
	for rest != nil {
		var line []byte
		line, rest = firstLine(rest)
		if line == nil || len(line) == 0 {
			break
		}
		i := bytes.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		if strings.EqualFold(string(bytes.TrimSpace(line[:i])), name) {
			return bytes.TrimSpace(line[i+1:])
		}
	}
	return nil
}
