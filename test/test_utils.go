/*
 * Copyright 2023 The RuleGo Authors.
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

package test

import (
	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/utils/uri"
)

// NewExchange creates an exchange for tests.
func NewExchange(pattern types.ExchangePattern, body interface{}, headers map[string]interface{}) *types.Exchange {
	return types.NewExchangeWithBody(pattern, body, headers)
}

// StaticDynamicAware is an optimizer that moves the named uri parameters to exchange
// properties and returns the uri without them.
type StaticDynamicAware struct {
	scheme string
	// Params are the parameters moved to the exchange.
	Params []string
	// Err, when set, is returned by Prepare.
	Err error
}

var _ types.PollDynamicAware = (*StaticDynamicAware)(nil)

func NewStaticDynamicAware(scheme string, params ...string) *StaticDynamicAware {
	return &StaticDynamicAware{scheme: scheme, Params: params}
}

func (d *StaticDynamicAware) Scheme() string {
	return d.scheme
}

func (d *StaticDynamicAware) SetScheme(scheme string) {
	d.scheme = scheme
}

func (d *StaticDynamicAware) Prepare(_ *types.Exchange, rawUri, originalUri string) (*types.DynamicAwareEntry, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	u, err := parse(rawUri)
	if err != nil {
		return nil, err
	}
	entry := &types.DynamicAwareEntry{
		Uri:               rawUri,
		OriginalUri:       originalUri,
		Properties:        map[string]string{},
		LenientProperties: map[string]string{},
	}
	for k, v := range u.Params {
		entry.Properties[k] = v
	}
	return entry, nil
}

func (d *StaticDynamicAware) ResolveStaticUri(exchange *types.Exchange, entry *types.DynamicAwareEntry) (string, error) {
	u, err := parse(entry.Uri)
	if err != nil {
		return "", err
	}
	moved := false
	for _, p := range d.Params {
		if v, ok := entry.Properties[p]; ok {
			exchange.SetProperty(p, v)
			delete(u.Params, p)
			moved = true
		}
	}
	if !moved {
		return "", nil
	}
	return u.String(), nil
}

func parse(rawUri string) (*uri.URI, error) {
	return uri.Parse(rawUri)
}
