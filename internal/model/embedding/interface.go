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

package embedding

import "context"

// 检索式嵌入的两种输入类型：入库文本用 passage，查询文本用 query
const (
	ModePassage = "passage"
	ModeQuery   = "query"
)

// Embedder 文本向量化接口
type Embedder interface {
	// Embed 将文本编码为向量，mode 为 ModePassage 或 ModeQuery
	Embed(ctx context.Context, text string, mode string) ([]float64, error)
	// Dimension 返回向量维度，未知时返回 0
	Dimension() int
}
