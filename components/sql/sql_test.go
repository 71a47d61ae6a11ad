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

package sql

import (
	"database/sql"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = types.NewConfig(types.WithLogger(types.NopLogger()))

// setupDB 在临时目录创建数据库，返回端点使用的dsn
func setupDB(t *testing.T, name string) (*sql.DB, string) {
	dsn := filepath.Join(t.TempDir(), name+".db")
	db, err := sql.Open("sqlite3", dsn)
	require.Nil(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`create table jobs (id integer primary key, tenant text, status text)`)
	require.Nil(t, err)
	_, err = db.Exec(`insert into jobs (id, tenant, status) values (1, 'a', 'new'), (2, 'b', 'new'), (3, 'a', 'new')`)
	require.Nil(t, err)
	return db, dsn
}

func sqlUri(query, dsn string, params string) string {
	uri := "sql:" + query + "?driver=sqlite3&dsn=" + url.QueryEscape(dsn)
	if params != "" {
		uri += "&" + params
	}
	return uri
}

func newConsumer(t *testing.T, c *Component, uri string) (*Endpoint, types.PollingConsumer) {
	ep, err := c.CreateEndpoint(testConfig, uri, types.ScopePooled)
	require.Nil(t, err)
	require.Nil(t, ep.Start())
	consumer, err := ep.CreatePollingConsumer()
	require.Nil(t, err)
	require.Nil(t, consumer.Start())
	t.Cleanup(func() {
		_ = consumer.Stop()
		_ = ep.Stop()
	})
	return ep.(*Endpoint), consumer
}

func status(t *testing.T, db *sql.DB, id int) string {
	var s string
	require.Nil(t, db.QueryRow(`select status from jobs where id = ?`, id).Scan(&s))
	return s
}

func TestSqlOnConsume(t *testing.T) {
	db, dsn := setupDB(t, "on_consume")
	_, consumer := newConsumer(t, &Component{}, sqlUri(
		"select id, tenant from jobs where status = 'new' order by id limit 1", dsn,
		"onConsume="+url.QueryEscape("update jobs set status = 'done' where id = :#id")))
	assert.True(t, consumer.Capabilities().ExchangeAware)

	for _, id := range []int64{1, 2, 3} {
		ex, err := consumer.ReceiveNoWait(nil)
		require.Nil(t, err)
		require.NotNil(t, ex)
		row := ex.In().Body.(map[string]interface{})
		assert.Equal(t, id, row["id"])
	}
	assert.Equal(t, "done", status(t, db, 3))

	ex, err := consumer.ReceiveNoWait(nil)
	assert.Nil(t, err)
	assert.Nil(t, ex)
}

func TestSqlExchangeParameters(t *testing.T) {
	_, dsn := setupDB(t, "exchange_params")
	e, consumer := newConsumer(t, &Component{}, sqlUri(
		"select id, tenant from jobs where tenant = :#tenant and id > :#after order by id limit 1", dsn, ""))
	assert.Equal(t, "select id, tenant from jobs where tenant = ? and id > ? order by id limit 1", e.Query())

	original := types.NewExchangeWithBody(types.InOnly, nil, map[string]interface{}{"tenant": "a"})
	original.SetProperty("after", 1)
	ex, err := consumer.ReceiveNoWait(original)
	require.Nil(t, err)
	require.NotNil(t, ex)
	row := ex.In().Body.(map[string]interface{})
	assert.Equal(t, int64(3), row["id"])
	assert.Equal(t, "a", row["tenant"])
	assert.Equal(t, e.Query(), ex.In().GetHeader(HeaderQuery))
}

func TestSqlOnConsumeFailed(t *testing.T) {
	db, dsn := setupDB(t, "on_consume_failed")
	_, consumer := newConsumer(t, &Component{}, sqlUri(
		"select id from jobs where status = 'new' order by id limit 1", dsn,
		"onConsume="+url.QueryEscape("update jobs set status = 'busy' where id = :#id")+
			"&onConsumeFailed="+url.QueryEscape("update jobs set status = 'new' where id = :#id")))

	ex, err := consumer.ReceiveNoWait(nil)
	require.Nil(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, "busy", status(t, db, 1))

	ex.SetErr(assert.AnError)
	ex.RunCompletions()
	assert.Equal(t, "new", status(t, db, 1))
}

func TestSqlWaitsForRow(t *testing.T) {
	db, dsn := setupDB(t, "wait_row")
	_, consumer := newConsumer(t, &Component{}, sqlUri(
		"select id from jobs where status = 'ready' limit 1", dsn, "pollInterval=10ms"))

	start := time.Now()
	ex, err := consumer.ReceiveTimeout(nil, 50*time.Millisecond)
	assert.Nil(t, err)
	assert.Nil(t, ex)
	assert.True(t, time.Since(start) >= 50*time.Millisecond)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_, _ = db.Exec(`update jobs set status = 'ready' where id = 2`)
	}()
	ex, err = consumer.ReceiveTimeout(nil, 2*time.Second)
	require.Nil(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, int64(2), ex.In().Body.(map[string]interface{})["id"])
}

func TestSqlEndpoint(t *testing.T) {
	c := &Component{}
	assert.Equal(t, Scheme, c.Scheme())
	_, err := c.CreateEndpoint(testConfig, "sql:select 1", types.ScopePooled)
	assert.NotNil(t, err)
	_, err = c.CreateEndpoint(testConfig, "sql:delete from jobs?driver=sqlite3&dsn=x", types.ScopePooled)
	assert.NotNil(t, err)

	ep, err := c.CreateEndpoint(testConfig, "sql:select * from t where a = :#a and b = :#b?driver=postgres&dsn=x", types.ScopePooled)
	require.Nil(t, err)
	assert.Equal(t, "select * from t where a = $1 and b = $2", ep.(*Endpoint).Query())

	ep, err = c.CreateEndpoint(testConfig, "sql:select 1?driver=unknown&dsn=x", types.ScopePooled)
	require.Nil(t, err)
	assert.NotNil(t, ep.Start())

	_, dsn := setupDB(t, "shared_pool")
	first, _ := newConsumer(t, c, sqlUri("select id from jobs limit 1", dsn, ""))
	second, _ := newConsumer(t, c, sqlUri("select tenant from jobs limit 1", dsn, ""))
	assert.Same(t, first.db.Load(), second.db.Load())
	assert.Equal(t, 2, c.databases().Refs(first.key()))
}
