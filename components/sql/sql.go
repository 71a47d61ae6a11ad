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

// Package sql provides the `sql:` component which polls the first row of a query.
//
// The query is the path of the uri. `:#name` placeholders are bound to the headers, then the
// properties, of the in-flight exchange. The row becomes the body of the resource exchange
// as a map of column names to values. `onConsume` runs right after a row is read, with
// placeholders bound to the row columns, and is typically used to mark the row as processed.
// `onConsumeFailed` runs when the resource exchange fails.
//
// Supported drivers: mysql, postgres and sqlite3.
//
// Uri format:
//
//	sql:select * from jobs where status = 'new' and tenant = :#tenant order by id limit 1?driver=postgres&dsn=...&onConsume=update jobs set status = 'done' where id = :#id
package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rulego/pollenrich/api/types"
	"github.com/rulego/pollenrich/components/base"
)

// Scheme 组件默认名称
const Scheme = "sql"

// HeaderQuery is the query that produced the row.
const HeaderQuery = "SqlQuery"

var placeholderPattern = regexp.MustCompile(`:#([A-Za-z_][A-Za-z0-9_.]*)`)

// Options 端点参数
type Options struct {
	// Driver 数据库驱动：mysql、postgres、sqlite3
	Driver string
	// Dsn 数据库连接配置，参考sql.Open参数
	Dsn string
	// OnConsume 读取一行后执行的语句，占位符绑定该行的列
	OnConsume string
	// OnConsumeFailed 资源交换失败时执行的语句
	OnConsumeFailed string
	// PoolSize 最大连接数，只在连接池第一次创建时生效
	PoolSize int
	// PollInterval 没有数据时的查询间隔
	PollInterval time.Duration
}

// Component sql组件，相同驱动和dsn的端点共享连接池
type Component struct {
	once sync.Once
	dbs  *base.SharedClients[*sql.DB]
}

var _ types.Component = (*Component)(nil)

func (c *Component) Scheme() string {
	return Scheme
}

func (c *Component) databases() *base.SharedClients[*sql.DB] {
	c.once.Do(func() {
		c.dbs = base.NewSharedClients(func(db *sql.DB) error {
			return db.Close()
		})
	})
	return c.dbs
}

func (c *Component) CreateEndpoint(config types.Config, rawUri string, scope types.Scope) (types.Endpoint, error) {
	de, err := base.NewDefaultEndpoint(config, rawUri, scope)
	if err != nil {
		return nil, err
	}
	e := &Endpoint{
		DefaultEndpoint: de,
		component:       c,
		options:         Options{PoolSize: 5, PollInterval: time.Second},
	}
	if err := de.DecodeOptions(&e.options); err != nil {
		return nil, err
	}
	if e.options.Driver == "" || e.options.Dsn == "" {
		return nil, errors.New("sql driver and dsn can not be empty")
	}
	e.query, e.queryParams = e.compile(de.Path())
	if !strings.HasPrefix(strings.ToLower(e.query), "select") && !strings.HasPrefix(strings.ToLower(e.query), "with") {
		return nil, fmt.Errorf("sql query must be a select statement. query=%s", e.query)
	}
	e.onConsume, e.onConsumeParams = e.compile(e.options.OnConsume)
	e.onConsumeFailed, e.onConsumeFailedParams = e.compile(e.options.OnConsumeFailed)
	e.SetHooks(base.Hooks{Start: e.doStart, Stop: e.doStop})
	return e, nil
}

// Endpoint sql查询端点
type Endpoint struct {
	*base.DefaultEndpoint
	component *Component
	options   Options
	db        atomic.Pointer[sql.DB]

	query                 string
	queryParams           []string
	onConsume             string
	onConsumeParams       []string
	onConsumeFailed       string
	onConsumeFailedParams []string
}

// Query returns the query in the placeholder syntax of the driver.
func (e *Endpoint) Query() string {
	return e.query
}

// compile 把 :#name 占位符转换为驱动的占位符，返回语句和参数名称
func (e *Endpoint) compile(statement string) (string, []string) {
	statement = strings.TrimSpace(statement)
	if statement == "" {
		return "", nil
	}
	var names []string
	out := placeholderPattern.ReplaceAllStringFunc(statement, func(m string) string {
		names = append(names, m[2:])
		if e.options.Driver == "postgres" {
			return "$" + strconv.Itoa(len(names))
		}
		return "?"
	})
	return out, names
}

func (e *Endpoint) key() string {
	return e.options.Driver + "|" + e.options.Dsn
}

func (e *Endpoint) doStart() error {
	db, err := e.component.databases().Acquire(e.key(), func() (*sql.DB, error) {
		db, err := sql.Open(e.options.Driver, e.options.Dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(e.options.PoolSize)
		db.SetMaxIdleConns(e.options.PoolSize/2 + 1)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return err
	}
	e.db.Store(db)
	return nil
}

func (e *Endpoint) doStop() error {
	if e.db.Swap(nil) == nil {
		return nil
	}
	return e.component.databases().Release(e.key())
}

func (e *Endpoint) CreatePollingConsumer() (types.PollingConsumer, error) {
	return base.NewPollingConsumer(e, e.Capabilities(true), base.PollerFunc(e.poll), e.Logger(),
		e.Options().ShutdownTimeout), nil
}

func (e *Endpoint) poll(ctx context.Context, exchange *types.Exchange, timeout time.Duration) (*types.Exchange, error) {
	db := e.db.Load()
	if db == nil {
		return nil, base.ErrClientNotInit
	}
	args := bind(e.queryParams, func(name string) interface{} {
		if exchange == nil {
			return nil
		}
		if v, ok := exchange.In().Header(name); ok {
			return v
		}
		return exchange.GetProperty(name)
	})
	return base.PollEvery(ctx, timeout, e.options.PollInterval, func(ctx context.Context) (*types.Exchange, error) {
		row, err := queryOne(ctx, db, e.query, args)
		if err != nil || row == nil {
			return nil, err
		}
		if e.onConsume != "" {
			if _, err := db.ExecContext(ctx, e.onConsume, bindRow(e.onConsumeParams, row)...); err != nil {
				return nil, fmt.Errorf("sql onConsume failed: %w", err)
			}
		}
		ex := types.NewExchangeWithBody(types.InOnly, row, map[string]interface{}{HeaderQuery: e.query})
		if e.onConsumeFailed != "" {
			ex.AddOnCompletion(&rollback{endpoint: e, row: row})
		}
		return ex, nil
	})
}

func bind(names []string, lookup func(name string) interface{}) []interface{} {
	args := make([]interface{}, len(names))
	for i, name := range names {
		args[i] = lookup(name)
	}
	return args
}

func bindRow(names []string, row map[string]interface{}) []interface{} {
	return bind(names, func(name string) interface{} {
		return row[name]
	})
}

// queryOne 查询第一行，[]byte类型的值转换为string
func queryOne(ctx context.Context, db *sql.DB, query string, args []interface{}) (map[string]interface{}, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if !rows.Next() {
		return nil, rows.Err()
	}
	values := make([]interface{}, len(columns))
	for i := range values {
		var v interface{}
		values[i] = &v
	}
	if err := rows.Scan(values...); err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(columns))
	for i, column := range columns {
		v := *(values[i].(*interface{}))
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[column] = v
	}
	return row, nil
}

// rollback 资源交换失败时执行 onConsumeFailed
type rollback struct {
	endpoint *Endpoint
	row      map[string]interface{}
}

func (r *rollback) OnComplete(_ *types.Exchange) {
}

func (r *rollback) OnFailure(_ *types.Exchange) {
	e := r.endpoint
	db := e.db.Load()
	if db == nil {
		return
	}
	if _, err := db.Exec(e.onConsumeFailed, bindRow(e.onConsumeFailedParams, r.row)...); err != nil {
		e.Logger().Warnf("sql onConsumeFailed failed. err=%v", err)
	}
}
