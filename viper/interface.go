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

// Package viper wraps spf13/viper with the logger, remote-provider and
// hot-reload conventions the rest of this module's config layer expects.
package viper

import (
	"context"
	"io"
	"time"

	spfvpr "github.com/spf13/viper"

	liblog "github.com/megallm/ultrabalancer/logger"
	loglvl "github.com/megallm/ultrabalancer/logger/level"
)

// Viper is the contract config.Component (and any other caller) uses to
// load, inspect and reload a configuration document, regardless of
// whether it came from a local file, the environment, or a remote
// key/value provider.
type Viper interface {
	// Viper returns the underlying spf13/viper instance for callers
	// that need a capability this interface does not wrap directly.
	Viper() *spfvpr.Viper

	GetBool(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint(key string) uint
	GetUint16(key string) uint16
	GetUint32(key string) uint32
	GetUint64(key string) uint64
	GetFloat64(key string) float64
	GetDuration(key string) time.Duration
	GetTime(key string) time.Time
	GetIntSlice(key string) []int
	GetStringSlice(key string) []string
	GetStringMap(key string) map[string]interface{}
	GetStringMapString(key string) map[string]string
	GetStringMapStringSlice(key string) map[string][]string

	SetHomeBaseName(name string)
	SetEnvVarsPrefix(prefix string)
	SetDefaultConfig(fct func() io.Reader)
	SetConfigFile(path string) error

	SetRemoteProvider(provider string)
	SetRemoteEndpoint(endpoint string)
	SetRemotePath(path string)
	SetRemoteSecureKey(key string)
	SetRemoteModel(model interface{})
	SetRemoteReloadFunc(fct func())

	// Config loads the configured source (file, default, remote) into
	// the underlying viper instance, logging at errLvl on failure and
	// infLvl on success.
	Config(errLvl, infLvl loglvl.Level) error

	HookRegister(hook interface{})
	HookReset()

	Unmarshal(out interface{}) error
	UnmarshalKey(key string, out interface{}) error
	UnmarshalExact(out interface{}) error

	Unset(keys ...string) error
}

// New builds a Viper bound to ctx, using log for its own diagnostics
// (a nil log falls back to the package default logger).
func New(ctx context.Context, log liblog.FuncLog) Viper {
	if log == nil {
		log = func() liblog.Logger {
			return liblog.New(ctx)
		}
	}
	return &model{
		ctx: ctx,
		log: log,
		vpr: spfvpr.New(),
	}
}
