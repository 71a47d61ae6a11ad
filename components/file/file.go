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

// Package file provides the `file:` component which polls files from a directory.
//
// The consumer reads the first matching file, ordered by name. When the resource exchange
// completes the file is moved into the `move` sub directory, deleted, or left in place
// (`noop`). A file being processed is not returned again until its exchange completes.
//
// Uri format:
//
//	file:/data/inbox?include=*.csv&exclude=tmp*,*.part&move=.done
//	file:/data/inbox?fileName=report.txt&noop=true
//
// The `fileName` of a dynamic uri is moved into the exchange property `FileName` by the
// component optimizer, so one consumer serves every file name of a directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
	"github.com/rulego/pollenrich/utils/cache"
	"github.com/rulego/pollenrich/utils/fs"
	"github.com/rulego/pollenrich/utils/str"
)

// Scheme 组件默认名称
const Scheme = "file"

// Headers of the resource exchange.
const (
	HeaderFileName         = "FileName"
	HeaderFilePath         = "FilePath"
	HeaderFileLength       = "FileLength"
	HeaderFileLastModified = "FileLastModified"
)

// PropertyFileName is the exchange property read by consumers of uris without `fileName`.
const PropertyFileName = "FileName"

// DefaultMove 默认的已处理文件目录
const DefaultMove = ".done"

// Options 端点参数
type Options struct {
	// FileName 只读取该文件，相对于目录
	FileName string
	// Include 文件名匹配模式，例如 *.csv
	Include string
	// Exclude 排除的文件名匹配模式，多个用逗号分隔
	Exclude []string
	// Noop 为true时文件保持不变
	Noop bool
	// Delete 为true时删除已处理的文件
	Delete bool
	// Move 已处理文件移动到的目录，相对于目录，默认 .done
	Move string
	// AutoCreate 启动时创建目录
	AutoCreate bool
	// PollInterval 等待文件时的检查间隔
	PollInterval time.Duration
	// IdempotentTTL noop模式下记住已处理文件的时间，0表示一直记住
	IdempotentTTL time.Duration
}

// Component 文件组件
type Component struct{}

var _ types.DynamicAwareComponent = (*Component)(nil)

func (c *Component) Scheme() string {
	return Scheme
}

func (c *Component) NewPollDynamicAware() types.PollDynamicAware {
	return NewDynamicAware()
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	e := &Endpoint{
		DefaultEndpoint: de,
		options:         Options{Move: DefaultMove, AutoCreate: true, PollInterval: base.DefaultPollInterval},
		inProgress:      make(map[string]struct{}),
		consumed:        cache.NewMemoryCache(0),
	}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	e.dir = filepath.Clean(de.Path())
	if strings.TrimSpace(de.Path()) == "" {
		return nil, fmt.Errorf("file directory can not be empty. uri=%s", rawUri)
	}
	if err := fs.ValidatePatterns(append([]string{e.options.Include}, e.options.Exclude...)...); err != nil {
		return nil, err
	}
	e.SetHooks(base.Hooks{Start: e.doStart, Stop: e.doStop})
	return e, nil
}

// Endpoint 文件目录端点
type Endpoint struct {
	*base.DefaultEndpoint
	options Options
	dir     string

	mu sync.Mutex
	// inProgress 正在处理的文件，交换完成前不会被再次读取
	inProgress map[string]struct{}
	// consumed noop模式下已处理的文件
	consumed *cache.MemoryCache
}

// Dir returns the polled directory.
func (e *Endpoint) Dir() string {
	return e.dir
}

func (e *Endpoint) doStart() error {
	if !e.options.AutoCreate {
		return nil
	}
	return fs.CreateDirs(e.dir)
}

func (e *Endpoint) doStop() error {
	e.consumed.StopGC()
	return nil
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(true), base.PollerFunc(e.poll), e.Logger(),
		e.Options().ShutdownTimeout), nil
}

func (e *Endpoint) poll(ctx context.Context, exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	name := e.options.FileName
	if name == "" && exchange != nil {
		if v, ok := exchange.Property(PropertyFileName); ok {
			name = str.ToString(v)
		}
	}
	return base.PollEvery(ctx, timeout, e.options.PollInterval, func(ctx context.Context) (*types.Exchange, error) {
		if name != "" {
			return e.pollFile(name)
		}
		return e.pollDir()
	})
}

func (e *Endpoint) pollFile(name string) (*types.Exchange, error) {
	path := filepath.Join(e.dir, name)
	if rel, err := filepath.Rel(e.dir, path); err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("file %s is outside of %s", name, e.dir)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, nil
	}
	// noop模式下命名文件可以被同时读取多次
	if !e.options.Noop && !e.claim(path, false) {
		return nil, nil
	}
	return e.read(path, info)
}

func (e *Endpoint) pollDir() (*types.Exchange, error) {
	entries, err := fs.MatchFiles(e.dir, e.options.Include, e.options.Exclude...)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		path := filepath.Join(e.dir, entry.Name())
		if !e.claim(path, e.options.Noop) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			e.release(path, false)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return e.read(path, info)
	}
	return nil, nil
}

// claim 标记文件为处理中，返回false表示文件正在处理或者已被处理
func (e *Endpoint) claim(path string, skipConsumed bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.inProgress[path]; ok {
		return false
	}
	if skipConsumed && e.consumed.Has(path) {
		return false
	}
	e.inProgress[path] = struct{}{}
	return true
}

func (e *Endpoint) release(path string, consumed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inProgress, path)
	if consumed {
		e.consumed.Set(path, time.Now(), e.options.IdempotentTTL)
	}
}

func (e *Endpoint) read(path string, info os.FileInfo) (*types.Exchange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		e.release(path, false)
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	rel, _ := filepath.Rel(e.dir, path)
	ex := types.NewExchangeWithBody(types.InOnly, data, map[string]interface{}{
		HeaderFileName:         filepath.ToSlash(rel),
		HeaderFilePath:         path,
		HeaderFileLength:       info.Size(),
		HeaderFileLastModified: info.ModTime(),
	})
	ex.AddOnCompletion(&commit{endpoint: e, path: path})
	return ex, nil
}

// commit 交换完成时处理文件，失败时只释放文件以便重新读取
type commit struct {
	endpoint *Endpoint
	path     string
}

func (c *commit) OnComplete(_ *types.Exchange) {
	e := c.endpoint
	var err error
	switch {
	case e.options.Noop:
	case e.options.Delete:
		err = os.Remove(c.path)
	default:
		target := filepath.Join(e.dir, e.options.Move, filepath.Base(c.path))
		if err = fs.CreateDirs(filepath.Dir(target)); err == nil {
			err = os.Rename(c.path, target)
		}
	}
	if err != nil {
		e.Logger().Warnf("file commit failed. file=%s, err=%v", c.path, err)
	}
	e.release(c.path, e.options.Noop)
}

func (c *commit) OnFailure(_ *types.Exchange) {
	c.endpoint.release(c.path, false)
}
