package llm

import (
	"context"
)

// Client LLM 客户端接口
type Client interface {
	// Generate 单轮生成
	Generate(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// Chat 多轮对话
	Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
	// SetModel 设置模型
	SetModel(model string)
	// SetAPIKey 设置 API Key
	SetAPIKey(apiKey string)
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	Stop        []string `json:"stop"`
}

// DefaultOptions 诊断推理的默认参数，低温度保证输出格式稳定
func DefaultOptions() GenerateOptions {
	return GenerateOptions{Temperature: 0.2, MaxTokens: 2048}
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 创建 LLM 客户端；目前各 provider 均走 OpenAI 兼容端点
func NewClient(provider, model, apiKey, baseURL string) (Client, error) {
	switch provider {
	case "", "openai", "qwen", "deepseek", "nvidia":
		return NewOpenAIClient(provider, model, apiKey, baseURL)
	default:
		return NewOpenAIClient(provider, model, apiKey, baseURL)
	}
}
