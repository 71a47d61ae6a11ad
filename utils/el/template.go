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

// Package el evaluates the expressions that compute dynamic endpoint uris.
// Two languages are supported: expr (default), with ${...} variables, and cel.
//
// Package el 表达式计算，用于动态计算轮询的目标端点。
package el

import (
	"errors"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rulego/pollenrich/utils/str"
)

var ErrUnclosedVar = errors.New("unclosed ${ in template")

type Template interface {
	Parse() error
	Execute(data map[string]any) (interface{}, error)
	// HasVar 是否有变量
	HasVar() bool
}

// NewTemplate creates the template matching tmpl:
// a single ${expr} becomes an ExprTemplate that keeps the type of the result,
// text mixed with ${expr} becomes a MixedTemplate producing a string,
// other strings and non string values are returned as they are.
func NewTemplate(tmpl any) (Template, error) {
	v, ok := tmpl.(string)
	if !ok {
		return &AnyTemplate{Tmpl: tmpl}, nil
	}
	trimV := strings.TrimSpace(v)
	if strings.HasPrefix(trimV, str.VarPrefix) {
		if end, err := closingBrace(trimV, len(str.VarPrefix)); err != nil {
			return nil, err
		} else if end == len(trimV)-1 {
			return NewExprTemplate(trimV)
		}
	}
	if str.CheckHasVar(v) {
		return NewMixedTemplate(v)
	}
	return &NotTemplate{Tmpl: v}, nil
}

// ExprTemplate 使用expr计算的表达式，${xx} 外层可以省略
type ExprTemplate struct {
	Tmpl    string
	Program *vm.Program
}

// NewExprTemplate compiles tmpl. Variables written as ${x} outside of double quotes
// are unwrapped to x before compilation.
func NewExprTemplate(tmpl string) (*ExprTemplate, error) {
	unwrapped, err := unwrapVars(tmpl)
	if err != nil {
		return nil, err
	}
	t := &ExprTemplate{Tmpl: unwrapped}
	if err := t.Parse(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *ExprTemplate) Parse() error {
	program, err := expr.Compile(t.Tmpl, expr.AllowUndefinedVariables())
	if err != nil {
		return err
	}
	t.Program = program
	return nil
}

func (t *ExprTemplate) Execute(data map[string]any) (interface{}, error) {
	if t.Program == nil {
		return nil, nil
	}
	return expr.Run(t.Program, data)
}

func (t *ExprTemplate) HasVar() bool {
	return true
}

// NotTemplate 原样输出
type NotTemplate struct {
	Tmpl string
}

func (t *NotTemplate) Parse() error {
	return nil
}

func (t *NotTemplate) Execute(map[string]any) (interface{}, error) {
	return t.Tmpl, nil
}

func (t *NotTemplate) HasVar() bool {
	return false
}

// AnyTemplate 非字符串值，原样输出
type AnyTemplate struct {
	Tmpl any
}

func (t *AnyTemplate) Parse() error {
	return nil
}

func (t *AnyTemplate) Execute(map[string]any) (interface{}, error) {
	return t.Tmpl, nil
}

func (t *AnyTemplate) HasVar() bool {
	return false
}

type segment struct {
	text    string
	program *vm.Program
}

// MixedTemplate 支持混合字符串和变量的模板，格式如 file:/data/${header.dir}?fileName=${body}
type MixedTemplate struct {
	Tmpl     string
	segments []segment
}

func NewMixedTemplate(tmpl string) (*MixedTemplate, error) {
	t := &MixedTemplate{Tmpl: tmpl}
	if err := t.Parse(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *MixedTemplate) Parse() error {
	t.segments = t.segments[:0]
	rest := t.Tmpl
	for {
		start := strings.Index(rest, str.VarPrefix)
		if start < 0 {
			break
		}
		end, err := closingBrace(rest, start+len(str.VarPrefix))
		if err != nil {
			return err
		}
		program, err := expr.Compile(rest[start+len(str.VarPrefix):end], expr.AllowUndefinedVariables())
		if err != nil {
			return err
		}
		if start > 0 {
			t.segments = append(t.segments, segment{text: rest[:start]})
		}
		t.segments = append(t.segments, segment{program: program})
		rest = rest[end+1:]
	}
	if rest != "" {
		t.segments = append(t.segments, segment{text: rest})
	}
	return nil
}

func (t *MixedTemplate) Execute(data map[string]any) (interface{}, error) {
	var sb strings.Builder
	for _, s := range t.segments {
		if s.program == nil {
			sb.WriteString(s.text)
			continue
		}
		val, err := expr.Run(s.program, data)
		if err != nil {
			return nil, err
		}
		sb.WriteString(str.ToString(val))
	}
	return sb.String(), nil
}

func (t *MixedTemplate) HasVar() bool {
	for _, s := range t.segments {
		if s.program != nil {
			return true
		}
	}
	return false
}

// ExecuteAsString executes the template, returning "" on error.
func (t *MixedTemplate) ExecuteAsString(data map[string]any) string {
	val, _ := t.Execute(data)
	return str.ToString(val)
}

// closingBrace returns the index of the brace closing the variable whose body starts at from.
// Nested braces and quoted strings are skipped.
func closingBrace(s string, from int) (int, error) {
	depth := 0
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case c == '{':
			depth++
		case c == '}':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return -1, ErrUnclosedVar
}

// unwrapVars 去掉双引号以外的 ${} 包装
func unwrapVars(tmpl string) (string, error) {
	var sb strings.Builder
	inQuotes := false
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			sb.WriteByte(c)
		case c == '\\' && i+1 < len(tmpl):
			sb.WriteByte(c)
			i++
			sb.WriteByte(tmpl[i])
		case !inQuotes && strings.HasPrefix(tmpl[i:], str.VarPrefix):
			end, err := closingBrace(tmpl, i+len(str.VarPrefix))
			if err != nil {
				return "", err
			}
			sb.WriteString(tmpl[i+len(str.VarPrefix) : end])
			i = end
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}
