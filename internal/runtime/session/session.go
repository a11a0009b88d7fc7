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

// Package session 管理螺旋推理会话：已用案例、轮次与问题追踪。
package session

import (
	"strings"
	"time"
)

// Session 单个用户的螺旋推理会话状态
type Session struct {
	ID            string         `json:"session_id"`
	OriginalQuery string         `json:"original_query"`
	UsedCases     []string       `json:"used_cases"`
	RoundCount    int            `json:"round_count"`
	CurrentResult map[string]any `json:"current_result,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdated   time.Time      `json:"last_updated"`
}

// NewSession 创建会话
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// UpdateQuery 更新问题；问题有实质变化时重置轮次与已用案例。
// 字符集合 Jaccard 相似度 < 0.8 视为有更新
func (s *Session) UpdateQuery(query string) {
	s.LastUpdated = time.Now()
	if s.OriginalQuery == "" {
		s.OriginalQuery = query
		return
	}
	if textSimilarity(s.OriginalQuery, query) < 0.8 {
		s.OriginalQuery = query
		s.UsedCases = nil
		s.RoundCount = 0
		s.CurrentResult = nil
	}
}

// MarkUsed 记录本轮使用的案例，避免下一轮重复取用
func (s *Session) MarkUsed(caseIDs ...string) {
	seen := make(map[string]bool, len(s.UsedCases))
	for _, id := range s.UsedCases {
		seen[id] = true
	}
	for _, id := range caseIDs {
		if id != "" && !seen[id] {
			s.UsedCases = append(s.UsedCases, id)
			seen[id] = true
		}
	}
	s.LastUpdated = time.Now()
}

// IsUsed 案例是否已在本会话中使用过
func (s *Session) IsUsed(caseID string) bool {
	for _, id := range s.UsedCases {
		if id == caseID {
			return true
		}
	}
	return false
}

// NextRound 进入下一轮推理，返回当前轮次
func (s *Session) NextRound() int {
	s.RoundCount++
	s.LastUpdated = time.Now()
	return s.RoundCount
}

// textSimilarity 字符集合的 Jaccard 相似度，范围 0-1
func textSimilarity(a, b string) float64 {
	setA := charSet(a)
	setB := charSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for r := range setA {
		if setB[r] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func charSet(text string) map[rune]bool {
	set := make(map[rune]bool)
	for _, r := range strings.ToLower(strings.ReplaceAll(text, " ", "")) {
		set[r] = true
	}
	return set
}
