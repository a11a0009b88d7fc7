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

package session

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tcm-cbr/pkg/metrics"
)

// Manager 会话管理器，线程安全
type Manager struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	maxSessions int
}

// NewManager 创建会话管理器，maxSessions <= 0 时默认 1000
func NewManager(maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
	}
}

// GetOrCreate 获取或创建会话；sessionID 为空时按查询内容生成。
// 达到会话上限时淘汰最久未更新的一成会话
func (m *Manager) GetOrCreate(sessionID, query string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID == "" {
		sessionID = generateSessionID(query)
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		if len(m.sessions) >= m.maxSessions {
			m.evictOldest(m.maxSessions / 10)
		}
		s = NewSession(sessionID)
		m.sessions[sessionID] = s
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}
	s.UpdateQuery(query)
	return s
}

// Get 获取指定会话，不存在返回 nil
func (m *Manager) Get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// Reset 删除指定会话，返回是否存在
func (m *Manager) Reset(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return true
}

// ResetAll 删除所有会话，返回删除数量
func (m *Manager) ResetAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := len(m.sessions)
	m.sessions = make(map[string]*Session)
	metrics.ActiveSessions.Set(0)
	return count
}

// Infos 返回所有会话的概要，按创建时间排序
func (m *Manager) Infos() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	infos := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, map[string]any{
			"session_id":   s.ID,
			"query":        s.OriginalQuery,
			"round_count":  s.RoundCount,
			"used_cases":   len(s.UsedCases),
			"created_at":   s.CreatedAt.Format(time.RFC3339),
			"last_updated": s.LastUpdated.Format(time.RFC3339),
		})
	}
	return infos
}

// Count 活跃会话数
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// evictOldest 淘汰最久未更新的 n 个会话，调用方需持锁
func (m *Manager) evictOldest(n int) {
	if n < 1 {
		n = 1
	}
	type entry struct {
		id      string
		updated time.Time
	}
	entries := make([]entry, 0, len(m.sessions))
	for id, s := range m.sessions {
		entries = append(entries, entry{id: id, updated: s.LastUpdated})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updated.Before(entries[j].updated)
	})
	for i := 0; i < n && i < len(entries); i++ {
		delete(m.sessions, entries[i].id)
	}
}

// generateSessionID 基于查询内容生成会话 ID：
// spiral_<时间戳>_<查询hash前8位>_<随机后缀>
func generateSessionID(query string) string {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(query), " ", ""))
	sum := md5.Sum([]byte(normalized))
	hash := hex.EncodeToString(sum[:])[:8]
	timestamp := time.Now().Format("20060102_150405")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("spiral_%s_%s_%s", timestamp, hash, suffix)
}
