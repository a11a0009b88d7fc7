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

package cbr

import "context"

// Route 依是否带个案身分选择查询方案：
// pid 非空走个人化查询（方案B），否则走匿名查询（方案A）
func (e *Engine) Route(ctx context.Context, pid, queryText string, topN int, logID string) *Retrieval {
	if pid != "" {
		return e.PersonalQuery(ctx, pid, queryText, topN, logID)
	}
	return e.AnonymousQuery(ctx, queryText, topN, logID)
}
