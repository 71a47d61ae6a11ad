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

// Package fs lists and prepares the files polled by the file component.
package fs

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IsExist 判断路径是否存在
func IsExist(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// CreateDirs 创建目录及其所有父目录
func CreateDirs(path string) error {
	return os.MkdirAll(path, 0755)
}

// ValidatePatterns checks that every pattern is a valid filepath.Match pattern.
func ValidatePatterns(patterns ...string) error {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return errors.New("invalid pattern " + p + ": " + err.Error())
		}
	}
	return nil
}

// MatchFiles 返回目录下匹配的文件，按名称排序，不包括子目录和隐藏文件
// include="" 匹配所有文件。目录不存在时返回空列表
func MatchFiles(dir string, include string, excludedPatterns ...string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []os.DirEntry
	for _, d := range entries {
		name := d.Name()
		if d.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if include != "" {
			if matched, _ := filepath.Match(include, name); !matched {
				continue
			}
		}
		if isMatch(d, excludedPatterns...) {
			continue
		}
		files = append(files, d)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() < files[j].Name()
	})
	return files, nil
}

func isMatch(d os.DirEntry, patterns ...string) bool {
	for _, item := range patterns {
		if matched, _ := filepath.Match(item, d.Name()); matched {
			return true
		}
	}
	return false
}
