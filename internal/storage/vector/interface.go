package vector

import (
	"context"
)

// 三个固定集合：匿名病例库、个人完整病历库、脉象知识库
const (
	CollectionCase    = "Case"
	CollectionPCD     = "PCD"
	CollectionPulsePJ = "PulsePJ"
)

// Store 向量存储接口
type Store interface {
	// Create 创建集合
	Create(ctx context.Context, index *Index) error
	// Add 添加向量对象
	Add(ctx context.Context, collection string, vectors []*Vector) error
	// Search 语意检索；query 为 nil 时仅按 Filter 过滤
	Search(ctx context.Context, collection string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// Get 根据 ID 获取向量对象
	Get(ctx context.Context, collection string, id string) (*Vector, error)
	// Delete 删除向量对象
	Delete(ctx context.Context, collection string, id string) error
	// DeleteCollection 删除整个集合
	DeleteCollection(ctx context.Context, collection string) error
	// ListCollections 列出已有集合名
	ListCollections(ctx context.Context) ([]string, error)
	// Close 关闭存储连接
	Close() error
}

// Index 集合定义
type Index struct {
	Name       string   `json:"name"`
	Dimension  int      `json:"dimension"`
	Properties []string `json:"properties"` // 集合的元数据字段名
}

// Vector 向量对象，元数据为字符串字段
// 结构化内容（如诊断结果）以 JSON 字符串形式存入
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// SearchOptions 检索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Filter    map[string]string `json:"filter"`    // 元数据等值过滤
	Threshold float64           `json:"threshold"` // 相似度阈值，0 表示不过滤
}

// SearchResult 检索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// CaseProperties Case 与 PCD 集合的字段
var CaseProperties = []string{
	"case_id", "timestamp", "summary", "llm_struct", "raw_case",
	"name", "gender", "age", "phone", "address", "patient_id",
}

// PulseProperties PulsePJ 集合的字段
var PulseProperties = []string{
	"neo4j_id", "name", "description", "main_disease", "symptoms", "knowledge_chain",
}
