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

package app

import (
	"fmt"

	"tcm-cbr/internal/cases"
	"tcm-cbr/internal/storage/cache"
	"tcm-cbr/internal/storage/vector"
	"tcm-cbr/pkg/config"
	"tcm-cbr/pkg/log"
)

// Bootstrap 统一初始化：供 api 与 evaluator 复用，避免在 cmd 内写业务逻辑
type Bootstrap struct {
	Config      *config.Config
	Logger      *log.Logger
	VectorStore vector.Store
	CacheStore  cache.Store
	CaseStore   *cases.Store
}

// NewBootstrap 根据配置创建 Bootstrap（日志 / 向量库 / 缓存 / 病历存储）
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	var vecStore vector.Store
	var cacheStore cache.Store
	var caseStore *cases.Store
	if cfg != nil {
		vecStore, err = vector.NewStore(cfg.Storage.Vector)
		if err != nil {
			return nil, fmt.Errorf("初始化向量存储失败: %w", err)
		}
		cacheStore, err = cache.NewStore(cfg.Storage.Cache)
		if err != nil {
			return nil, fmt.Errorf("初始化缓存失败: %w", err)
		}
		caseStore, err = cases.NewStore(cfg.Storage.Cases.DataDir, cfg.Storage.Cases.ResultDir)
		if err != nil {
			return nil, fmt.Errorf("初始化病历存储失败: %w", err)
		}
	}

	return &Bootstrap{
		Config:      cfg,
		Logger:      logger,
		VectorStore: vecStore,
		CacheStore:  cacheStore,
		CaseStore:   caseStore,
	}, nil
}

// Close 释放所有存储连接
func (b *Bootstrap) Close() error {
	if b.CacheStore != nil {
		if err := b.CacheStore.Close(); err != nil {
			return err
		}
	}
	if b.VectorStore != nil {
		return b.VectorStore.Close()
	}
	return nil
}
