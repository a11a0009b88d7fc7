// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cases

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tcm-cbr/pkg/errors"
)

// Store 病历文件存储：原始 JSON、诊断摘要、推理链日志
type Store struct {
	dataDir      string
	resultDir    string
	reasoningDir string
}

// NewStore 创建文件存储并确保目录存在
func NewStore(dataDir, resultDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if resultDir == "" {
		resultDir = "./result"
	}
	reasoningDir := filepath.Join(resultDir, "reasoning_log")
	for _, dir := range []string{dataDir, resultDir, reasoningDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "创建目录 %s 失败", dir)
		}
	}
	return &Store{dataDir: dataDir, resultDir: resultDir, reasoningDir: reasoningDir}, nil
}

// nowStamp 文件名时间戳
func nowStamp() string {
	return time.Now().Format("20060102_150405")
}

// SaveRaw 保存原始病历 JSON，文件名 <时间戳>_<pid>.json，返回文件名
func (s *Store) SaveRaw(data map[string]any) (string, error) {
	pid := "xxxx"
	if basic, ok := data["basic"].(map[string]any); ok {
		if id, ok := basic["id"].(string); ok && id != "" {
			pid = id
		}
	}
	fname := fmt.Sprintf("%s_%s.json", nowStamp(), pid)
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "序列化病历失败")
	}
	if err := os.WriteFile(filepath.Join(s.dataDir, fname), buf, 0644); err != nil {
		return "", errors.Wrap(err, "写入病历文件失败")
	}
	return fname, nil
}

// LoadRaw 按文件名读取原始病历
func (s *Store) LoadRaw(fname string) (map[string]any, error) {
	path := filepath.Join(s.dataDir, filepath.Base(fname))
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(buf, &data); err != nil {
		return nil, errors.Wrap(err, "解析病历 JSON 失败")
	}
	return data, nil
}

// SaveSummary 写入诊断摘要档 <base>_summary.json，返回文件名
func (s *Store) SaveSummary(caseFile string, summary map[string]any) (string, error) {
	base := strings.TrimSuffix(filepath.Base(caseFile), filepath.Ext(caseFile))
	fname := base + "_summary.json"
	buf, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "序列化摘要失败")
	}
	if err := os.WriteFile(filepath.Join(s.resultDir, fname), buf, 0644); err != nil {
		return "", errors.Wrap(err, "写入摘要文件失败")
	}
	return fname, nil
}

// ListResults 扫描 result 目录下所有 _summary.json 文件名（排序）
func (s *Store) ListResults() ([]string, error) {
	entries, err := os.ReadDir(s.resultDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "_summary.json") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// SaveReasoningLog 记录一次查询的推理链与推理树，按查询标识落盘
func (s *Store) SaveReasoningLog(logID string, chain any, tree any, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	data := map[string]any{
		"case_id":         logID,
		"timestamp":       time.Now().Format(time.RFC3339),
		"reasoning_chain": chain,
		"tree":            tree,
		"meta":            meta,
	}
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "序列化推理链失败")
	}
	fname := filepath.Join(s.reasoningDir, filepath.Base(logID)+"_reasoning.json")
	return os.WriteFile(fname, buf, 0644)
}
