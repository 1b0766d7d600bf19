package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhizhi/bobi/backend/internal/config"
	"github.com/zhizhi/bobi/backend/internal/model/chat"
)

// Service adapts the configured chat model into a single-shot completion
// provider: full transcript in, one assistant reply out.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the completion chain for the configured provider.
func NewService(ctx context.Context, cfg config.LLMConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile completion chain: %w", err)
	}

	return &Service{chain: runnable}, nil
}

// Complete runs one blocking completion over the ordered transcript. The
// transcript's leading system message and trailing user message become the
// chain's system and query slots; everything between is history. No retry:
// a failed call is the caller's to report.
func (s *Service) Complete(ctx context.Context, transcript []chat.Message) (string, error) {
	response, err := s.chain.Invoke(ctx, buildChainInput(transcript))
	if err != nil {
		return "", fmt.Errorf("run completion chain: %w", err)
	}

	log.Printf("[ai] completion returned, length=%d", len(response.Content))
	return response.Content, nil
}

func buildChainInput(transcript []chat.Message) map[string]any {
	system := ""
	query := ""

	msgs := transcript
	if len(msgs) > 0 && msgs[0].Sender == chat.SenderSystem {
		system = msgs[0].Content
		msgs = msgs[1:]
	}
	if n := len(msgs); n > 0 && msgs[n-1].Sender == chat.SenderUser {
		query = msgs[n-1].Content
		msgs = msgs[:n-1]
	}

	history := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(m.Content))
		case chat.SenderAssistant:
			history = append(history, schema.AssistantMessage(m.Content, nil))
		}
	}

	return map[string]any{
		"system":  system,
		"history": history,
		"query":   query,
	}
}
