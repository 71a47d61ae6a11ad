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

package file

import (
	"errors"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/utils/maps"
	"github.com/rulego/pollenrich/utils/uri"
)

const paramFileName = "fileName"

// DynamicAware 文件组件的动态端点优化器
// DynamicAware removes `fileName` from evaluated uris and carries it in the exchange
// property PropertyFileName, so every file of a directory shares one static uri.
type DynamicAware struct {
	scheme string
}

var _ types.PollDynamicAware = (*DynamicAware)(nil)

func NewDynamicAware() *DynamicAware {
	return &DynamicAware{scheme: Scheme}
}

func (d *DynamicAware) Scheme() string {
	return d.scheme
}

func (d *DynamicAware) SetScheme(scheme string) {
	d.scheme = scheme
}

func (d *DynamicAware) Prepare(_ *types.Exchange, rawUri, originalUri string) (*types.DynamicAwareEntry, error) {
	u, err := uri.Parse(rawUri)
	if err != nil {
		return nil, err
	}
	var options struct {
		base.EndpointOptions `mapstructure:",squash"`
		Options              `mapstructure:",squash"`
	}
	unused, err := maps.Map2StructUnused(maps.StringMap(u.Params), &options)
	if err != nil {
		return nil, err
	}
	entry := &types.DynamicAwareEntry{
		Uri:               rawUri,
		OriginalUri:       originalUri,
		Properties:        make(map[string]string, len(u.Params)),
		LenientProperties: make(map[string]string, len(unused)),
	}
	for k, v := range u.Params {
		entry.Properties[k] = v
	}
	for _, k := range unused {
		entry.LenientProperties[k] = u.Params[k]
	}
	return entry, nil
}

func (d *DynamicAware) ResolveStaticUri(exchange *types.Exchange, entry *types.DynamicAwareEntry) (string, error) {
	if entry == nil {
		return "", errors.New("entry can not be nil")
	}
	name, ok := entry.Properties[paramFileName]
	if !ok || name == "" {
		return "", nil
	}
	u, err := uri.Parse(entry.Uri)
	if err != nil {
		return "", err
	}
	delete(u.Params, paramFileName)
	if exchange != nil {
		exchange.SetProperty(PropertyFileName, name)
	}
	return u.String(), nil
}
