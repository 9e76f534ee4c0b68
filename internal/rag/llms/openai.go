package llms

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"astro/internal/rag/interfaces"
	"astro/internal/rag/schema"
)

// OpenAIChat 是一个用于 OpenAI API 的对话模型客户端。
type OpenAIChat struct {
	client       *openai.Client // OpenAI 客户端实例。
	defaultModel string         // 未指定模型时使用的默认模型。
}

// NewOpenAIChat 创建一个新的 OpenAIChat 客户端。
// baseURL 非空时覆盖默认的接口地址。
func NewOpenAIChat(apiKey, baseURL, defaultModel string) *OpenAIChat {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	client := openai.NewClientWithConfig(config)
	return &OpenAIChat{client: client, defaultModel: defaultModel}
}

// isReasoningModel 判断模型是否属于推理系列。
// 这些模型要求用 developer 角色代替 system 角色。
func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") ||
		strings.HasPrefix(model, "gpt-5")
}

// Chat 发送一轮对话请求并返回回答文本和实际使用的模型。
func (o *OpenAIChat) Chat(ctx context.Context, model, system string, history []schema.ChatMessage, user string) (string, string, error) {
	if model == "" {
		model = o.defaultModel
	}

	systemRole := openai.ChatMessageRoleSystem
	if isReasoningModel(model) {
		systemRole = "developer"
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: systemRole, Content: system})
	}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", "", fmt.Errorf("no choices returned")
	}

	return resp.Choices[0].Message.Content, resp.Model, nil
}

// 编译时检查，确保 OpenAIChat 实现了 ChatModel 接口
var _ interfaces.ChatModel = (*OpenAIChat)(nil)
