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

// Package size is a human-readable byte count that (un)marshals from config
// documents as either a bare integer or a suffixed string ("32KB", "4MiB").
package size

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

const (
	_ = iota
	KB Size = 1 << (10 * iota)
	MB
	GB
	TB
)

var suffixes = []struct {
	suffix string
	unit   Size
}{
	{"TiB", TB}, {"TB", TB},
	{"GiB", GB}, {"GB", GB},
	{"MiB", MB}, {"MB", MB},
	{"KiB", KB}, {"KB", KB},
	{"B", 1},
}

// Int64 returns the size in bytes.
func (s Size) Int64() int64 { return int64(s) }

// Int returns the size in bytes, truncated to int.
func (s Size) Int() int { return int(s) }

// String renders s using the largest whole unit that divides it evenly,
// falling back to a plain byte count.
func (s Size) String() string {
	for _, u := range suffixes {
		if u.unit > 1 && s > 0 && s%u.unit == 0 {
			return fmt.Sprintf("%d%s", s/u.unit, u.suffix)
		}
	}
	return fmt.Sprintf("%dB", int64(s))
}

// Parse reads a size expressed as a bare byte count or with a KB/MB/GB/TB
// (and *iB variants) suffix.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	for _, u := range suffixes {
		if strings.HasSuffix(strings.ToUpper(s), strings.ToUpper(u.suffix)) {
			num := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			if num == "" {
				continue
			}
			v, e := strconv.ParseFloat(num, 64)
			if e != nil {
				return 0, e
			}
			return Size(v * float64(u.unit)), nil
		}
	}

	v, e := strconv.ParseInt(s, 10, 64)
	if e != nil {
		return 0, fmt.Errorf("size: cannot parse %q: %w", s, e)
	}
	return Size(v), nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting both bare
// integers and suffixed strings.
func (s *Size) UnmarshalText(b []byte) error {
	v, e := Parse(string(b))
	if e != nil {
		return e
	}
	*s = v
	return nil
}
