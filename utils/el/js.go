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
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/rulego/pollenrich/api/types"
)

// DefaultJsMaxExecutionTime js表达式最大执行时间
const DefaultJsMaxExecutionTime = time.Second

// JsTemplate 使用 goja 计算的 JavaScript 表达式，结果为最后一条语句的值，例如：
//
//	"file:/data/" + headers.dir + "?fileName=" + body
//	headers.target ? headers.target : null
type JsTemplate struct {
	Tmpl string
	// MaxExecutionTime 超时后中断脚本，<=0 不限制
	MaxExecutionTime time.Duration
	program          *goja.Program
	vmPool           sync.Pool
}

func NewJsTemplate(tmpl string) (*JsTemplate, error) {
	t := &JsTemplate{Tmpl: tmpl, MaxExecutionTime: DefaultJsMaxExecutionTime}
	if err := t.Parse(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *JsTemplate) Parse() error {
	program, err := goja.Compile("", t.Tmpl, true)
	if err != nil {
		return err
	}
	t.program = program
	t.vmPool.New = func() interface{} {
		return goja.New()
	}
	return nil
}

func (t *JsTemplate) Execute(data map[string]any) (out interface{}, err error) {
	if t.program == nil {
		return nil, nil
	}
	vm := t.vmPool.Get().(*goja.Runtime)
	defer func() {
		if caught := recover(); caught != nil {
			err = fmt.Errorf("js expression panic: %v", caught)
			return
		}
		// 被中断的vm不再复用
		if _, interrupted := err.(*goja.InterruptedError); !interrupted {
			vm.ClearInterrupt()
			t.vmPool.Put(vm)
		}
	}()
	for k, v := range data {
		if err := vm.Set(k, v); err != nil {
			return nil, err
		}
	}
	if t.MaxExecutionTime > 0 {
		timer := time.AfterFunc(t.MaxExecutionTime, func() {
			vm.Interrupt("execution timeout")
		})
		defer timer.Stop()
	}
	res, err := vm.RunProgram(t.program)
	if err != nil {
		return nil, err
	}
	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, nil
	}
	return res.Export(), nil
}

func (t *JsTemplate) HasVar() bool {
	return true
}

// Evaluate implements types.Expression.
func (t *JsTemplate) Evaluate(exchange *types.Exchange) (interface{}, error) {
	return t.Execute(Env(exchange))
}
