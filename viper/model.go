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

package viper

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	libmap "github.com/go-viper/mapstructure/v2"
	"github.com/mitchellh/go-homedir"
	spfvpr "github.com/spf13/viper"

	liblog "github.com/megallm/ultrabalancer/logger"
	loglvl "github.com/megallm/ultrabalancer/logger/level"
)

type model struct {
	ctx context.Context
	log liblog.FuncLog

	mu  sync.RWMutex
	vpr *spfvpr.Viper

	homeBaseName string
	envPrefix    string
	defaultCfg   func() io.Reader

	remoteProvider  string
	remoteEndpoint  string
	remotePath      string
	remoteSecureKey string
	remoteModel     interface{}
	remoteReload    func()

	hooks []interface{}
}

func (m *model) Viper() *spfvpr.Viper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vpr
}

func (m *model) GetBool(key string) bool   { return m.Viper().GetBool(key) }
func (m *model) GetString(key string) string { return m.Viper().GetString(key) }
func (m *model) GetInt(key string) int       { return m.Viper().GetInt(key) }
func (m *model) GetInt32(key string) int32   { return m.Viper().GetInt32(key) }
func (m *model) GetInt64(key string) int64   { return m.Viper().GetInt64(key) }
func (m *model) GetUint(key string) uint     { return m.Viper().GetUint(key) }
func (m *model) GetUint16(key string) uint16 { return m.Viper().GetUint16(key) }
func (m *model) GetUint32(key string) uint32 { return m.Viper().GetUint32(key) }
func (m *model) GetUint64(key string) uint64 { return m.Viper().GetUint64(key) }
func (m *model) GetFloat64(key string) float64 { return m.Viper().GetFloat64(key) }
func (m *model) GetDuration(key string) time.Duration { return m.Viper().GetDuration(key) }
func (m *model) GetTime(key string) time.Time         { return m.Viper().GetTime(key) }
func (m *model) GetIntSlice(key string) []int         { return m.Viper().GetIntSlice(key) }
func (m *model) GetStringSlice(key string) []string   { return m.Viper().GetStringSlice(key) }
func (m *model) GetStringMap(key string) map[string]interface{} {
	return m.Viper().GetStringMap(key)
}
func (m *model) GetStringMapString(key string) map[string]string {
	return m.Viper().GetStringMapString(key)
}
func (m *model) GetStringMapStringSlice(key string) map[string][]string {
	return m.Viper().GetStringMapStringSlice(key)
}

func (m *model) SetHomeBaseName(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homeBaseName = name
}

func (m *model) SetEnvVarsPrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envPrefix = prefix
}

func (m *model) SetDefaultConfig(fct func() io.Reader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultCfg = fct
}

func (m *model) SetConfigFile(path string) error {
	v := m.Viper()

	if path != "" {
		v.SetConfigFile(path)
		return nil
	}

	m.mu.RLock()
	base := m.homeBaseName
	prefix := m.envPrefix
	m.mu.RUnlock()

	if base == "" {
		return ErrorBasePathNotFound.Error(nil)
	}

	home, err := homedir.Dir()
	if err != nil {
		return ErrorHomePathNotFound.Error(err)
	}

	v.AddConfigPath(home)
	v.AddConfigPath(".")
	v.SetConfigName(base)

	if prefix != "" {
		v.SetEnvPrefix(prefix)
	}

	return nil
}

func (m *model) SetRemoteProvider(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteProvider = provider
}

func (m *model) SetRemoteEndpoint(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteEndpoint = endpoint
}

func (m *model) SetRemotePath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remotePath = path
}

func (m *model) SetRemoteSecureKey(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteSecureKey = key
}

func (m *model) SetRemoteModel(mdl interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteModel = mdl
}

func (m *model) SetRemoteReloadFunc(fct func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteReload = fct
}

func (m *model) logger() liblog.Logger {
	if m.log != nil {
		if l := m.log(); l != nil {
			return l
		}
	}
	return liblog.New(m.ctx)
}

// Config loads the configured source into the underlying viper
// instance: an explicit/home-resolved file first, falling back to the
// registered default reader when the file cannot be read.
func (m *model) Config(errLvl, infLvl loglvl.Level) error {
	v := m.Viper()
	v.AutomaticEnv()

	m.mu.RLock()
	remoteProvider := m.remoteProvider
	remoteEndpoint := m.remoteEndpoint
	remotePath := m.remotePath
	remoteSecureKey := m.remoteSecureKey
	defaultCfg := m.defaultCfg
	m.mu.RUnlock()

	if remoteProvider != "" {
		var err error
		if remoteSecureKey != "" {
			err = v.AddSecureRemoteProvider(remoteProvider, remoteEndpoint, remotePath, remoteSecureKey)
		} else {
			err = v.AddRemoteProvider(remoteProvider, remoteEndpoint, remotePath)
		}
		if err != nil {
			m.logger().Entry(errLvl, "registering remote provider: "+err.Error()).Log()
			return ErrorRemoteProvider.Error(err)
		}
		if err = v.ReadRemoteConfig(); err != nil {
			m.logger().Entry(errLvl, "reading remote config: "+err.Error()).Log()
			return ErrorRemoteProviderRead.Error(err)
		}
		m.logger().Entry(infLvl, "config loaded from remote provider").Log()
		return nil
	}

	if err := v.ReadInConfig(); err != nil {
		if defaultCfg != nil {
			if v.ConfigFileUsed() == "" {
				v.SetConfigType("json")
			}
			if dErr := v.ReadConfig(defaultCfg()); dErr != nil {
				m.logger().Entry(errLvl, "reading default config: "+dErr.Error()).Log()
				return ErrorConfigReadDefault.Error(dErr)
			}
			m.logger().Entry(infLvl, "config loaded from default config").Log()
			return ErrorConfigIsDefault.Error(err)
		}
		m.logger().Entry(errLvl, "reading config: "+err.Error()).Log()
		return ErrorConfigRead.Error(err)
	}

	m.logger().Entry(infLvl, "config loaded from "+v.ConfigFileUsed()).Log()
	return nil
}

func (m *model) HookRegister(hook interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

func (m *model) HookReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = nil
}

func (m *model) decode(input, out interface{}, strict bool) error {
	m.mu.RLock()
	hooks := append([]libmap.DecodeHookFunc{
		libmap.StringToTimeDurationHookFunc(),
		libmap.StringToSliceHookFunc(","),
	}, make([]libmap.DecodeHookFunc, 0, len(m.hooks))...)
	for _, h := range m.hooks {
		hooks = append(hooks, h)
	}
	m.mu.RUnlock()

	dec, err := libmap.NewDecoder(&libmap.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      strict,
		DecodeHook:       libmap.ComposeDecodeHookFunc(hooks...),
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func (m *model) Unmarshal(out interface{}) error {
	return m.decode(m.Viper().AllSettings(), out, false)
}

func (m *model) UnmarshalKey(key string, out interface{}) error {
	v := m.Viper()
	if !v.IsSet(key) {
		return ErrorParamMissing.Error(nil)
	}
	return m.decode(v.Get(key), out, false)
}

func (m *model) UnmarshalExact(out interface{}) error {
	return m.decode(m.Viper().AllSettings(), out, true)
}

// Unset removes keys (which may be top-level or dotted nested paths)
// from the loaded configuration. spf13/viper exposes no native unset,
// so this rebuilds the settings tree without the requested keys and
// replaces the live instance, preserving every other loaded value.
func (m *model) Unset(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	settings := m.vpr.AllSettings()
	for _, k := range keys {
		if k == "" {
			continue
		}
		deleteNested(settings, strings.Split(k, "."))
	}

	fresh := spfvpr.New()
	if err := fresh.MergeConfigMap(settings); err != nil {
		return ErrorConfigRead.Error(err)
	}
	m.vpr = fresh
	return nil
}

func deleteNested(m map[string]interface{}, path []string) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		delete(m, path[0])
		return
	}
	child, ok := m[path[0]].(map[string]interface{})
	if !ok {
		return
	}
	deleteNested(child, path[1:])
}
