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

// Package uri parses and normalizes endpoint uris of the form
// `scheme:path?k=v` or `scheme://path?k=v`.
package uri

import (
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var ErrMissingScheme = errors.New("uri has no scheme")

// URI is a parsed endpoint uri.
type URI struct {
	// Scheme 小写的组件名称
	Scheme string
	// Slashes reports whether the path was written as `scheme://path`.
	Slashes bool
	// Path 不包含 scheme 和查询参数的部分
	Path string
	// Params 查询参数
	Params map[string]string
}

// Parse splits raw into scheme, path and query parameters.
func Parse(raw string) (*URI, error) {
	raw = strings.TrimSpace(raw)
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok || scheme == "" || !validScheme(scheme) {
		return nil, ErrMissingScheme
	}
	u := &URI{Scheme: strings.ToLower(scheme), Params: map[string]string{}}
	if strings.HasPrefix(rest, "//") {
		u.Slashes = true
		rest = rest[2:]
	}
	path, query, _ := strings.Cut(rest, "?")
	u.Path = path
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			if len(v) > 0 {
				u.Params[k] = v[len(v)-1]
			}
		}
	}
	return u, nil
}

// String renders the uri with its parameters sorted by name.
func (u *URI) String() string {
	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteString(":")
	if u.Slashes {
		sb.WriteString("//")
	}
	sb.WriteString(u.Path)
	if len(u.Params) > 0 {
		sb.WriteString("?")
		sb.WriteString(encodeParams(u.Params))
	}
	return sb.String()
}

// Base returns the uri without query parameters.
func (u *URI) Base() string {
	c := *u
	c.Params = nil
	return c.String()
}

// Param returns the parameter value or def when missing.
func (u *URI) Param(name, def string) string {
	if v, ok := u.Params[name]; ok {
		return v
	}
	return def
}

// Scheme returns the lowercase scheme of raw, or "" when it has none.
func Scheme(raw string) string {
	scheme, _, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || !validScheme(scheme) {
		return ""
	}
	return strings.ToLower(scheme)
}

// Normalize 规范化uri：去除空白、scheme转小写、查询参数按名称排序
func Normalize(raw string) (string, error) {
	u, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Build creates a uri from its parts. Empty params are omitted.
func Build(scheme, path string, params map[string]string) string {
	u := &URI{Scheme: strings.ToLower(scheme), Path: path, Params: params}
	return u.String()
}

var secretParams = map[string]struct{}{
	"password":   {},
	"passphrase": {},
	"secret":     {},
	"secretkey":  {},
	"accesskey":  {},
	"token":      {},
}

var userInfoPattern = regexp.MustCompile(`([^/:@?]+):([^/@?]+)@`)

// Sanitize masks passwords and secrets so that the uri can be logged.
func Sanitize(raw string) string {
	out := userInfoPattern.ReplaceAllString(raw, "$1:xxxxxx@")
	base, query, ok := strings.Cut(out, "?")
	if !ok {
		return out
	}
	parts := strings.Split(query, "&")
	for i, p := range parts {
		k, _, hasValue := strings.Cut(p, "=")
		if _, secret := secretParams[strings.ToLower(k)]; secret && hasValue {
			parts[i] = k + "=xxxxxx"
		}
	}
	return base + "?" + strings.Join(parts, "&")
}

func encodeParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("&")
		}
		sb.WriteString(url.QueryEscape(k))
		sb.WriteString("=")
		sb.WriteString(url.QueryEscape(params[k]))
	}
	return sb.String()
}

func validScheme(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
