package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/conceptcatch/conceptcatch/internal/quiz"
)

// OpenAIConfig configures the OpenAI-backed oracle. BaseURL allows any
// OpenAI-compatible endpoint (Azure, OpenRouter, local).
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIOracle implements ContentOracle over chat completions with JSON
// object responses.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIOracle{client: openai.NewClientWithConfig(c), model: model}, nil
}

func (o *OpenAIOracle) Generate(ctx context.Context, spec GenerationSpec) ([]quiz.Question, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}
	raw, err := o.complete(ctx, generationSystem, generationPrompt(spec))
	if err != nil {
		return nil, wrapGenerationErr(err)
	}
	var out struct {
		Questions []quiz.Question `json:"questions"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrGenerationFailed, err)
	}
	if len(out.Questions) > spec.Count {
		out.Questions = out.Questions[:spec.Count]
	}
	for i := range out.Questions {
		out.Questions[i].Type = spec.Type
	}
	if err := checkOutput(spec, out.Questions); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (o *OpenAIOracle) Judge(ctx context.Context, req JudgeRequest) (Judgment, error) {
	raw, err := o.complete(ctx, judgeSystem, judgePrompt(req))
	if err != nil {
		return Judgment{}, fmt.Errorf("%w: %w", ErrJudgmentFailed, err)
	}
	var j Judgment
	if err := json.Unmarshal(raw, &j); err != nil {
		return Judgment{}, fmt.Errorf("%w: malformed response: %v", ErrJudgmentFailed, err)
	}
	clampCredit(&j)
	return j, nil
}

func (o *OpenAIOracle) complete(ctx context.Context, system, user string) (json.RawMessage, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}

func wrapGenerationErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
}

// transient reports whether a backend error is worth retrying. Contract
// violations (malformed JSON, invariant failures) are deterministic and are
// not retried; rate limits, 5xx and network errors are.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ErrGenerationTimeout) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	if errors.Is(err, ErrGenerationFailed) || errors.Is(err, ErrJudgmentFailed) {
		return false
	}
	return true
}
