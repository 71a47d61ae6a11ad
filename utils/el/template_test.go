/*
 * Copyright 2024 The RuleGo Authors.
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

package el

import (
	"reflect"
	"testing"
	"time"

	"github.com/rulego/pollenrich/api/types"
	"github.com/stretchr/testify/assert"
)

func TestExprTemplate(t *testing.T) {
	tests := []struct {
		name     string
		tmpl     string
		data     map[string]interface{}
		expected interface{}
		wantErr  bool
	}{
		{
			name:     "simple variable",
			tmpl:     `${user.Name}`,
			data:     map[string]interface{}{"user": struct{ Name string }{Name: "lala"}},
			expected: "lala",
		},
		{
			name: "object content with ${}",
			tmpl: `${{"name":"lala", "age":10}}`,
			data: map[string]interface{}{},
			expected: map[string]interface{}{"name": "lala", "age": 10},
		},
		{
			name: "quoted variable should not be replaced",
			tmpl: `{"name":"${user.Name}", "age":${user.Age}}`,
			data: map[string]interface{}{"user": struct {
				Name string
				Age  int
			}{Name: "lala", Age: 10}},
			expected: map[string]interface{}{"name": "${user.Name}", "age": 10},
		},
		{
			name:     "simple variable with no ${}",
			tmpl:     `user.Name`,
			data:     map[string]interface{}{"user": struct{ Name string }{Name: "lala"}},
			expected: "lala",
		},
		{
			name:     "undefined variable",
			tmpl:     `${missing}`,
			data:     map[string]interface{}{},
			expected: nil,
		},
		{
			name:    "invalid template",
			tmpl:    `${user.Name`,
			data:    map[string]interface{}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := NewExprTemplate(tt.tmpl)
			if tt.wantErr {
				assert.NotNil(t, err)
				return
			}
			assert.Nil(t, err)
			got, err := tmpl.Execute(tt.data)
			assert.Nil(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNewTemplate(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		wantType string
		wantErr  bool
	}{
		{name: "single expression template", input: "${user.Name}", wantType: "*el.ExprTemplate"},
		{name: "mixed template with multiple variables", input: "${header.prefix}_${header.suffix}", wantType: "*el.MixedTemplate"},
		{name: "uri with variable", input: "file:/data/${header.dir}", wantType: "*el.MixedTemplate"},
		{name: "expression with additional text", input: "${user.name}_test", wantType: "*el.MixedTemplate"},
		{name: "string without variables", input: "mock:a", wantType: "*el.NotTemplate"},
		{name: "non-string input", input: 123, wantType: "*el.AnyTemplate"},
		{name: "empty string", input: "", wantType: "*el.NotTemplate"},
		{name: "single expression with spaces", input: "  ${user.Age}  ", wantType: "*el.ExprTemplate"},
		{name: "ternary expression", input: "${header.a == 'x' ? 'mock:x' : 'mock:y'}", wantType: "*el.ExprTemplate"},
		{name: "unclosed", input: "${header.a", wantErr: true},
		{name: "invalid expression", input: "file:${header.}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTemplate(tt.input)
			if tt.wantErr {
				assert.NotNil(t, err)
				return
			}
			assert.Nil(t, err)
			assert.Equal(t, tt.wantType, reflect.TypeOf(got).String())
		})
	}
}

func TestMixedTemplateExecution(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]interface{}
		expected string
	}{
		{
			name:     "multiple variables with underscore",
			template: "${header.prefix}_${header.suffix}",
			data: map[string]interface{}{
				"header": map[string]interface{}{"prefix": "user", "suffix": 123},
			},
			expected: "user_123",
		},
		{
			name:     "repeated variable",
			template: "mock:${id}/${id}",
			data:     map[string]interface{}{"id": "a"},
			expected: "mock:a/a",
		},
		{
			name:     "multiple variables in path",
			template: "/api/${version}/users/${userId}/profile",
			data:     map[string]interface{}{"version": "v1", "userId": "12345"},
			expected: "/api/v1/users/12345/profile",
		},
		{
			name:     "braces inside expression",
			template: "mock:${{'a': 'x'}['a']}!",
			data:     map[string]interface{}{},
			expected: "mock:x!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := NewTemplate(tt.template)
			assert.Nil(t, err)
			mixed, ok := tmpl.(*MixedTemplate)
			assert.True(t, ok)
			assert.True(t, mixed.HasVar())
			assert.Equal(t, tt.expected, mixed.ExecuteAsString(tt.data))
		})
	}
}

func TestNotAndAnyTemplate(t *testing.T) {
	tmpl, _ := NewTemplate("mock:a")
	v, err := tmpl.Execute(nil)
	assert.Nil(t, err)
	assert.Equal(t, "mock:a", v)
	assert.False(t, tmpl.HasVar())

	tmpl, _ = NewTemplate(42)
	v, _ = tmpl.Execute(nil)
	assert.Equal(t, 42, v)
	assert.False(t, tmpl.HasVar())
}

func TestExpression(t *testing.T) {
	ex := types.NewExchangeWithBody(types.InOut, "a.txt", map[string]interface{}{"dir": "in"})
	ex.SetVariable("v", "x")
	ex.SetProperty("p", 2)

	e, err := NewExpression("file:/data/${header.dir}?fileName=${body}", "")
	assert.Nil(t, err)
	v, err := e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, "file:/data/in?fileName=a.txt", v)

	e, err = NewExpression("${variables.v + string(properties.p) + pattern}", LangExpr)
	assert.Nil(t, err)
	v, err = e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, "x2InOut", v)

	e, err = NewExpression("${headers.missing}", LangExpr)
	assert.Nil(t, err)
	v, err = e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Nil(t, v)

	e, err = NewExpression("exchangeId", "EXPR")
	assert.Nil(t, err)
	v, _ = e.Evaluate(ex)
	assert.Equal(t, "exchangeId", v)

	_, err = NewExpression("x", "groovy")
	assert.NotNil(t, err)

	v, err = Constant("mock:a").Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, "mock:a", v)
}

func TestCelExpression(t *testing.T) {
	ex := types.NewExchangeWithBody(types.InOnly, "a.txt", map[string]interface{}{"dir": "in"})

	e, err := NewExpression(`"file:/data/" + headers["dir"] + "?fileName=" + body`, LangCel)
	assert.Nil(t, err)
	v, err := e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, "file:/data/in?fileName=a.txt", v)

	e, err = NewExpression(`has(headers.target) ? headers.target : null`, LangCel)
	assert.Nil(t, err)
	v, err = e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Nil(t, v)

	e, err = NewExpression(`exchangeId.size() > 0 && pattern == "InOnly"`, LangCel)
	assert.Nil(t, err)
	v, err = e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, true, v)

	_, err = NewExpression(`headers[`, LangCel)
	assert.NotNil(t, err)

	e, err = NewExpression(`headers["missing"] + "x"`, LangCel)
	assert.Nil(t, err)
	_, err = e.Evaluate(ex)
	assert.NotNil(t, err)
}

func TestJsExpression(t *testing.T) {
	ex := types.NewExchangeWithBody(types.InOnly, "a.txt", map[string]interface{}{"dir": "in"})

	e, err := NewExpression(`"file:/data/" + headers.dir + "?fileName=" + body`, LangJs)
	assert.Nil(t, err)
	v, err := e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, "file:/data/in?fileName=a.txt", v)
	// vm复用
	v, err = e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, "file:/data/in?fileName=a.txt", v)

	e, err = NewExpression(`headers.target ? headers.target : null`, "javascript")
	assert.Nil(t, err)
	v, err = e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Nil(t, v)

	e, err = NewExpression(`var n = variables.count || 0; n + 1`, LangJs)
	assert.Nil(t, err)
	v, err = e.Evaluate(ex)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), v)

	_, err = NewExpression(`headers[`, LangJs)
	assert.NotNil(t, err)

	e, err = NewExpression(`undefinedFunc()`, LangJs)
	assert.Nil(t, err)
	_, err = e.Evaluate(ex)
	assert.NotNil(t, err)
}

func TestJsExpressionTimeout(t *testing.T) {
	tmpl, err := NewJsTemplate(`while (true) {}`)
	assert.Nil(t, err)
	tmpl.MaxExecutionTime = 50 * time.Millisecond
	_, err = tmpl.Execute(map[string]any{})
	assert.NotNil(t, err)
}
