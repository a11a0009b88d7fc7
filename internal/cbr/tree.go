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

// Step 推理链中的一个步骤
type Step struct {
	Label    string `json:"step"`
	Reason   string `json:"reason"`
	Input    string `json:"input"`
	TopHits  []Hit  `json:"top_hits"`
	Branches []Step `json:"branches,omitempty"`
}

// TreeNode 推理树节点，供前端可视化
type TreeNode struct {
	Label    string     `json:"label"`
	Reason   string     `json:"reason,omitempty"`
	Input    string     `json:"input,omitempty"`
	TopHits  []Hit      `json:"top_hits,omitempty"`
	Children []TreeNode `json:"children"`
}

// ChainToTree 将推理链转为推理树：根节点固定为「推理流程」，
// 每个步骤为一个子节点，branches 递归展开
func ChainToTree(chain []Step) TreeNode {
	children := make([]TreeNode, 0, len(chain))
	for _, step := range chain {
		children = append(children, nodeFromStep(step))
	}
	return TreeNode{Label: "推理流程", Children: children}
}

func nodeFromStep(step Step) TreeNode {
	children := make([]TreeNode, 0, len(step.Branches))
	for _, branch := range step.Branches {
		children = append(children, nodeFromStep(branch))
	}
	return TreeNode{
		Label:    step.Label,
		Reason:   step.Reason,
		Input:    step.Input,
		TopHits:  step.TopHits,
		Children: children,
	}
}
