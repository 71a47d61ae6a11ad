/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package properties resolves `{{key}}` and `{{key:default}}` placeholders from
// a viper backed property store. Values can come from config files, environment
// variables or be set programmatically.
package properties

import (
	"fmt"
	"strings"

	"github.com/rulego/pollenrich/api/types"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

var _ types.PropertiesResolver = (*Resolver)(nil)

// Resolver 基于viper的属性占位符解析器
type Resolver struct {
	v *viper.Viper
}

// New wraps v. A nil v creates an empty store that also reads environment variables,
// key `a.b` being read from `A_B`.
func New(v *viper.Viper) *Resolver {
	if v == nil {
		v = viper.New()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()
	}
	return &Resolver{v: v}
}

// FromMap creates a resolver holding values.
func FromMap(values map[string]interface{}) *Resolver {
	r := New(nil)
	for k, val := range values {
		r.v.Set(k, val)
	}
	return r
}

// LoadFile 从配置文件加载属性，支持viper支持的所有格式（yaml、json、toml、properties等）
func LoadFile(path string) (*Resolver, error) {
	r := New(nil)
	r.v.SetConfigFile(path)
	if err := r.v.ReadInConfig(); err != nil {
		return nil, err
	}
	return r, nil
}

// Set sets a property.
func (r *Resolver) Set(key string, value interface{}) {
	r.v.Set(key, value)
}

func (r *Resolver) Get(key string) (string, bool) {
	if !r.v.IsSet(key) {
		return "", false
	}
	return cast.ToString(r.v.Get(key)), true
}

// Resolve replaces every placeholder of text. A placeholder without value and without
// default fails the whole resolution.
func (r *Resolver) Resolve(text string) (string, error) {
	if !strings.Contains(text, types.PlaceholderPrefix) {
		return text, nil
	}
	var sb strings.Builder
	rest := text
	for {
		start := strings.Index(rest, types.PlaceholderPrefix)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], types.PlaceholderSuffix)
		if end < 0 {
			return "", fmt.Errorf("unclosed placeholder in: %s", text)
		}
		end += start
		sb.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+len(types.PlaceholderPrefix) : end])
		def, hasDefault := "", false
		if i := strings.Index(key, ":"); i >= 0 {
			key, def, hasDefault = strings.TrimSpace(key[:i]), key[i+1:], true
		}
		if v, ok := r.Get(key); ok {
			sb.WriteString(v)
		} else if hasDefault {
			sb.WriteString(def)
		} else {
			return "", fmt.Errorf("property with key [%s] not found in properties", key)
		}
		rest = rest[end+len(types.PlaceholderSuffix):]
	}
	sb.WriteString(rest)
	return sb.String(), nil
}
