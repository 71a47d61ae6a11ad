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

package el

import (
	"fmt"
	"strings"

	"github.com/rulego/pollenrich/api/types"
)

// Expression languages.
const (
	LangExpr = "expr"
	LangCel  = "cel"
	LangJs   = "js"
)

// Variables available to expressions.
const (
	VarBody       = "body"
	VarHeaders    = "headers"
	VarHeader     = "header"
	VarVariables  = "variables"
	VarProperties = "properties"
	VarExchangeId = "exchangeId"
	VarPattern    = "pattern"
)

// Env 构建表达式执行环境
// Env builds the evaluation environment of exchange. Maps are never nil.
func Env(exchange *types.Exchange) map[string]any {
	in := exchange.In()
	headers := in.Headers
	if headers == nil {
		headers = map[string]interface{}{}
	}
	variables := exchange.Variables()
	if variables == nil {
		variables = map[string]interface{}{}
	}
	properties := exchange.Properties()
	if properties == nil {
		properties = map[string]interface{}{}
	}
	return map[string]any{
		VarBody:       in.Body,
		VarHeaders:    headers,
		VarHeader:     headers,
		VarVariables:  variables,
		VarProperties: properties,
		VarExchangeId: exchange.Id(),
		VarPattern:    exchange.Pattern().String(),
	}
}

// TemplateExpression evaluates an expr Template against an exchange.
type TemplateExpression struct {
	Template Template
}

func (e *TemplateExpression) Evaluate(exchange *types.Exchange) (interface{}, error) {
	return e.Template.Execute(Env(exchange))
}

// NewExpression compiles text in language, which is LangExpr when empty.
// An expr text without ${} is returned as a constant.
func NewExpression(text, language string) (types.Expression, error) {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", LangExpr:
		tmpl, err := NewTemplate(text)
		if err != nil {
			return nil, err
		}
		return &TemplateExpression{Template: tmpl}, nil
	case LangCel:
		return NewCelTemplate(text)
	case LangJs, "javascript":
		return NewJsTemplate(text)
	default:
		return nil, fmt.Errorf("unsupported expression language: %s", language)
	}
}

// Constant returns an expression that always evaluates to value.
func Constant(value interface{}) types.Expression {
	return types.ExpressionFunc(func(*types.Exchange) (interface{}, error) {
		return value, nil
	})
}
