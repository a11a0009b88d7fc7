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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "api.yaml")
	content := `
api:
  port: 8000
  host: "0.0.0.0"
storage:
  vector:
    type: weaviate
    addr: "http://localhost:8080"
  cache:
    type: memory
  cases:
    data_dir: "./data"
    result_dir: "./result"
session:
  max_sessions: 50
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.API.Port)
	require.Equal(t, "weaviate", cfg.Storage.Vector.Type)
	require.Equal(t, "./data", cfg.Storage.Cases.DataDir)
	require.Equal(t, 50, cfg.Session.MaxSessions)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_EnvReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	content := `
model:
  llm:
    providers:
      nvidia:
        api_key: "${TEST_LLM_API_KEY}"
        base_url: "https://integrate.api.nvidia.com/v1"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("TEST_LLM_API_KEY", "nvapi-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "nvapi-test", cfg.Model.LLM.Providers["nvidia"].APIKey)
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
