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

// Package str provides the string helpers used by expressions and uri resolution.
package str

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

const (
	// VarPrefix 表达式变量前缀
	VarPrefix = "${"
	// VarSuffix 表达式变量后缀
	VarSuffix = "}"
)

// CheckHasVar 检查字符串是否有${}占位符
func CheckHasVar(str string) bool {
	i := strings.Index(str, VarPrefix)
	return i >= 0 && strings.Contains(str[i:], VarSuffix)
}

// ToString input的值转成字符串,忽略错误
func ToString(input interface{}) string {
	v, _ := ToStringMaybeErr(input)
	return v
}

// ToStringMaybeErr input的值转成字符串，[]byte按utf8处理，
// 实现 fmt.Stringer 或 error 的值使用其字符串形式
func ToStringMaybeErr(input interface{}) (string, error) {
	switch v := input.(type) {
	case nil:
		return "", nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case error:
		return v.Error(), nil
	default:
		return cast.ToStringE(input)
	}
}

// TrimQuotes 去除首尾成对的单引号或双引号
func TrimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
