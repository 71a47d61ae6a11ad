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
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	pt "github.com/rulego/pollenrich/api/types"
)

// CelTemplate 使用 CEL 计算的表达式，例如：
//
//	"file:/data/" + headers["dir"]
//	has(headers.target) ? headers.target : "mock:default"
type CelTemplate struct {
	Tmpl    string
	program cel.Program
}

var celEnv, celEnvErr = cel.NewEnv(
	cel.Variable(VarBody, cel.DynType),
	cel.Variable(VarHeaders, cel.MapType(cel.StringType, cel.DynType)),
	cel.Variable(VarHeader, cel.MapType(cel.StringType, cel.DynType)),
	cel.Variable(VarVariables, cel.MapType(cel.StringType, cel.DynType)),
	cel.Variable(VarProperties, cel.MapType(cel.StringType, cel.DynType)),
	cel.Variable(VarExchangeId, cel.StringType),
	cel.Variable(VarPattern, cel.StringType),
)

func NewCelTemplate(tmpl string) (*CelTemplate, error) {
	t := &CelTemplate{Tmpl: tmpl}
	if err := t.Parse(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *CelTemplate) Parse() error {
	if celEnvErr != nil {
		return celEnvErr
	}
	ast, iss := celEnv.Compile(t.Tmpl)
	if iss != nil && iss.Err() != nil {
		return iss.Err()
	}
	program, err := celEnv.Program(ast)
	if err != nil {
		return err
	}
	t.program = program
	return nil
}

func (t *CelTemplate) Execute(data map[string]any) (interface{}, error) {
	out, _, err := t.program.Eval(data)
	if err != nil {
		return nil, err
	}
	return celValue(out), nil
}

func (t *CelTemplate) HasVar() bool {
	return true
}

// Evaluate implements types.Expression.
func (t *CelTemplate) Evaluate(exchange *pt.Exchange) (interface{}, error) {
	return t.Execute(Env(exchange))
}

func celValue(v ref.Val) interface{} {
	if v == nil || v.Type() == types.NullType {
		return nil
	}
	return v.Value()
}
