package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// AnswerRequest carries a question plus the retrieved note context used to
// ground the answer.
type AnswerRequest struct {
	Question     string
	Context      string
	UserContexts []string
}

// AnswerResponse is the grounded answer.
type AnswerResponse struct {
	Answer string
}

// AnswerService answers questions grounded on retrieved notes.
type AnswerService interface {
	AnswerQuestion(ctx context.Context, req *AnswerRequest) (*AnswerResponse, error)
}

type answerService struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewAnswerService creates an AnswerService against any OpenAI-compatible
// endpoint.
func NewAnswerService(cfg *LLMConfig) (AnswerService, error) {
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}

	return &answerService{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

const answerSystemPrompt = `You are a personal notes assistant. Answer the
question using only the provided notes. When the notes do not contain the
answer, say so plainly instead of guessing. Answer in the language of the
question.`

func (s *answerService) AnswerQuestion(ctx context.Context, req *AnswerRequest) (*AnswerResponse, error) {
	var sb strings.Builder
	if len(req.UserContexts) > 0 {
		fmt.Fprintf(&sb, "The user's contexts: %s\n\n", strings.Join(req.UserContexts, ", "))
	}
	if req.Context != "" {
		fmt.Fprintf(&sb, "Notes:\n%s\n\n", req.Context)
	}
	fmt.Fprintf(&sb, "Question: %s", req.Question)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty chat completion response")
	}

	return &AnswerResponse{Answer: resp.Choices[0].Message.Content}, nil
}
