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

package lbconfig

import (
	"context"

	liblog "github.com/megallm/ultrabalancer/logger"
	loglvl "github.com/megallm/ultrabalancer/logger/level"
	libvpr "github.com/megallm/ultrabalancer/viper"
)

// LoadStructured parses a YAML or TOML document (format inferred from
// the extension by spf13/viper) into a Document, via this module's
// viper wrapper (SPEC_FULL §6's second configuration syntax).
func LoadStructured(path string) (*Document, error) {
	v := libvpr.New(context.Background(), liblog.GetDefault)
	if err := v.SetConfigFile(path); err != nil {
		return nil, ErrorConfigReadFailed.ErrorParent(err)
	}
	if err := v.Config(loglvl.ErrorLevel, loglvl.DebugLevel); err != nil {
		return nil, ErrorConfigReadFailed.ErrorParent(err)
	}
	doc := &Document{}
	if err := v.Unmarshal(doc); err != nil {
		return nil, ErrorConfigSyntax.ErrorParent(err)
	}
	return doc, nil
}

// Load picks the parser by file extension: ".cfg" and ".conf" use the
// haproxy-style line syntax, everything else (".yaml", ".yml", ".toml",
// ".json") goes through the structured loader.
func Load(path string) (*Document, error) {
	switch ext(path) {
	case ".cfg", ".conf":
		return LoadHAProxyStyle(path)
	default:
		return LoadStructured(path)
	}
}

func ext(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}
