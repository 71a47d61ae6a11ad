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

// Package runtime provides the stack trace logged when a recovered panic is reported.
package runtime

import (
	"fmt"
	"runtime"
	"strings"
)

// Stack 获取堆栈信息，不包括 Stack 及其调用者所在的帧
func Stack() string {
	var pc = make([]uintptr, 20)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	var build strings.Builder
	for {
		frame, more := frames.Next()
		build.WriteString(fmt.Sprintf(" %s:%d \n", frame.File, frame.Line))
		if !more {
			break
		}
	}
	return build.String()
}
