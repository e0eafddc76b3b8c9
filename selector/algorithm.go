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

// Package selector implements the routing-decision algorithms: given a
// client key and the current backend snapshot, pick one healthy backend.
package selector

// Algorithm names one of the exhaustive set of balancing policies in
// SPEC_FULL §4.3.
type Algorithm uint8

const (
	RoundRobin Algorithm = iota
	StaticRoundRobin
	WeightedRandom
	LeastConnections
	SourceHash
	URIHash
	ParameterHash
	HeaderHash
	Random
	Sticky
)

func (a Algorithm) String() string {
	switch a {
	case RoundRobin:
		return "roundrobin"
	case StaticRoundRobin:
		return "static-rr"
	case WeightedRandom:
		return "weighted"
	case LeastConnections:
		return "leastconn"
	case SourceHash:
		return "source"
	case URIHash:
		return "uri"
	case ParameterHash:
		return "url_param"
	case HeaderHash:
		return "hdr"
	case Random:
		return "random"
	case Sticky:
		return "sticky"
	default:
		return "unknown"
	}
}

// ParseAlgorithm maps the CLI/config spelling onto an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case "round-robin", "roundrobin":
		return RoundRobin, nil
	case "static-rr", "static-round-robin":
		return StaticRoundRobin, nil
	case "weighted", "weighted-random":
		return WeightedRandom, nil
	case "least-conn", "leastconn":
		return LeastConnections, nil
	case "source", "source-hash", "ip-hash":
		return SourceHash, nil
	case "uri", "uri-hash":
		return URIHash, nil
	case "url_param", "url-param":
		return ParameterHash, nil
	case "hdr", "header":
		return HeaderHash, nil
	case "random", "response-time":
		return Random, nil
	case "sticky":
		return Sticky, nil
	default:
		return 0, ErrorUnknownAlgorithm.Error(nil)
	}
}
