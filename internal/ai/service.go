package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/xaenox/wispr-bot/internal/chat"
	"github.com/xaenox/wispr-bot/internal/models"
	"go.uber.org/zap"
)

// markdownNote is appended to the outgoing system message so the model
// formats replies with the Markdown subset Telegram can render.
const markdownNote = "Please use Markdown for text formatting. " +
	"Telegram supports *italic*, **bold**, `code`, ```preformatted code``` and " +
	"[link text](URL). The characters '_', '*', '`' and '[' must be escaped " +
	"with '\\' when not used for formatting."

// Config carries the completion parameters shared by every request.
type Config struct {
	AvailableModels []string
	DefaultModel    string
	MaxTokens       int
	Temperature     float32
}

// Service talks to the OpenAI API on behalf of one credential. Failures are
// reported in-band as diagnostics carrying the chat.ErrorMarker prefix, so
// the renderer and context builder recognize them system-wide.
type Service struct {
	client *openai.Client
	config Config
	logger *zap.Logger
}

func NewService(apiKey string, config Config, logger *zap.Logger) *Service {
	return &Service{
		client: openai.NewClient(apiKey),
		config: config,
		logger: logger,
	}
}

// StreamCompletion starts a streaming chat completion and returns a channel
// of cumulative-text increments. The channel is closed when the stream ends;
// on failure the last increment is a marked diagnostic and nothing follows it.
func (s *Service) StreamCompletion(ctx context.Context, messages []models.ChatMessage, model string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		if len(messages) == 0 {
			s.logger.Error("Empty message context provided to the API")
			out <- chat.ErrorMarker + ": empty message context for the API"
			return
		}

		model = s.resolveModel(model)

		stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    s.buildRequestMessages(messages),
			MaxTokens:   s.config.MaxTokens,
			Temperature: s.config.Temperature,
			Stream:      true,
		})
		if err != nil {
			s.logger.Error("Failed to start completion stream", zap.Error(err))
			out <- s.diagnostic(err)
			return
		}
		defer stream.Close()

		var full strings.Builder
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				s.logger.Error("Completion stream failed", zap.Error(err))
				out <- s.diagnostic(err)
				return
			}

			if len(response.Choices) == 0 || response.Choices[0].Delta.Content == "" {
				continue
			}

			full.WriteString(response.Choices[0].Delta.Content)
			select {
			case out <- full.String():
			case <-ctx.Done():
				return
			}
		}

		if full.Len() == 0 {
			s.logger.Error("OpenAI returned an empty streaming response")
			out <- chat.ErrorMarker + ": the API returned an empty response"
		}
	}()

	return out
}

// ImageResult is a successfully generated image.
type ImageResult struct {
	URL           string
	RevisedPrompt string
}

// GenerateImage creates one image for the prompt. The returned error text is
// already user-presentable.
func (s *Service) GenerateImage(ctx context.Context, prompt, size, model string) (*ImageResult, error) {
	validSizes := map[string]bool{
		openai.CreateImageSize1024x1024: true,
		openai.CreateImageSize1792x1024: true,
		openai.CreateImageSize1024x1792: true,
	}
	if !validSizes[size] {
		s.logger.Warn("Invalid image size requested, using default", zap.String("size", size))
		size = openai.CreateImageSize1024x1024
	}
	if model == "" {
		model = openai.CreateImageModelDallE3
	}

	response, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Model:   model,
		Prompt:  prompt,
		Size:    size,
		Quality: openai.CreateImageQualityStandard,
		N:       1,
	})
	if err != nil {
		s.logger.Error("Image generation failed", zap.Error(err))
		return nil, errors.New(s.diagnostic(err))
	}

	if len(response.Data) == 0 || response.Data[0].URL == "" {
		s.logger.Error("OpenAI returned empty image data")
		return nil, errors.New(chat.ErrorMarker + ": the API returned no image")
	}

	revised := response.Data[0].RevisedPrompt
	if revised == "" {
		revised = prompt
	}
	return &ImageResult{URL: response.Data[0].URL, RevisedPrompt: revised}, nil
}

// ValidateAPIKey checks a candidate key with a cheap authenticated request.
func ValidateAPIKey(ctx context.Context, apiKey string, logger *zap.Logger) bool {
	client := openai.NewClient(apiKey)
	if _, err := client.ListModels(ctx); err != nil {
		logger.Warn("API key validation failed", zap.Error(err))
		return false
	}
	return true
}

func (s *Service) resolveModel(model string) string {
	for _, available := range s.config.AvailableModels {
		if model == available {
			return model
		}
	}
	s.logger.Warn("Invalid model requested, using default",
		zap.String("model", model),
		zap.String("default", s.config.DefaultModel))
	return s.config.DefaultModel
}

// buildRequestMessages converts the prompt to API form, folding the Telegram
// Markdown instruction into the system message (or inserting one).
func (s *Service) buildRequestMessages(messages []models.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	hasSystem := false

	for _, msg := range messages {
		content := msg.Content
		if content == "" {
			content = " "
		}
		if msg.Role == models.RoleSystem && !hasSystem {
			hasSystem = true
			content += " " + markdownNote
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: content,
		})
	}

	if !hasSystem {
		out = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: markdownNote,
		}}, out...)
	}

	return out
}

// diagnostic maps a provider error to the user-facing marked text.
func (s *Service) diagnostic(err error) string {
	switch status := httpStatus(err); status {
	case 429:
		return chat.ErrorMarker + ": OpenAI rate limit exceeded. Please try again later."
	case 401:
		return chat.ErrorMarker + ": the OpenAI API key is invalid. Please check your key."
	default:
		return fmt.Sprintf("%s: failed to reach OpenAI: %v", chat.ErrorMarker, err)
	}
}

func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
