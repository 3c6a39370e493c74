package adapters

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"tg-gemini/internal/vendors/gemini"
)

const geminiMaxOutputTokens = 4096

// GeminiAdapter translates between the openai message format used internally
// and the Gemini generateContent API. The system message becomes the system
// instruction; assistant turns map to the "model" role.
type GeminiAdapter struct {
	client *gemini.Client
}

func NewGeminiAdapter(client *gemini.Client) *GeminiAdapter {
	return &GeminiAdapter{client: client}
}

func (a *GeminiAdapter) Provider() string {
	return "gemini"
}

func (a *GeminiAdapter) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	response, err := a.client.GenerateContent(ctx, request.Model, buildGeminiRequest(request))
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: response.Text(),
				},
			},
		},
	}, nil
}

func (a *GeminiAdapter) CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (LLMStream, error) {
	stream, err := a.client.StreamGenerateContent(ctx, request.Model, buildGeminiRequest(request))
	if err != nil {
		return nil, err
	}
	return &GeminiStreamAdapter{stream: stream}, nil
}

func buildGeminiRequest(request openai.ChatCompletionRequest) gemini.GenerateContentRequest {
	contents := make([]gemini.Content, 0, len(request.Messages))
	var systemInstruction *gemini.Content
	for _, message := range request.Messages {
		if message.Role == openai.ChatMessageRoleSystem {
			systemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: message.Content}}}
			continue
		}
		role := "user"
		if message.Role == openai.ChatMessageRoleAssistant {
			role = "model"
		}
		contents = append(contents, gemini.Content{
			Role:  role,
			Parts: []gemini.Part{{Text: message.Content}},
		})
	}

	return gemini.GenerateContentRequest{
		Contents:          contents,
		SystemInstruction: systemInstruction,
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:     0.7,
			TopP:            1,
			MaxOutputTokens: geminiMaxOutputTokens,
		},
	}
}

type GeminiStreamAdapter struct {
	stream  *gemini.StreamedResponse
	current openai.ChatCompletionStreamResponse
	err     error
}

func (a *GeminiStreamAdapter) Next() bool {
	chunk, err := a.stream.Recv()
	if err != nil {
		a.err = err
		return false
	}
	a.current = openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{
				Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk.Text()},
			},
		},
	}
	return true
}

func (a *GeminiStreamAdapter) Current() openai.ChatCompletionStreamResponse {
	return a.current
}

func (a *GeminiStreamAdapter) Err() error {
	return a.err
}

func (a *GeminiStreamAdapter) Close() error {
	if a.stream == nil {
		return nil
	}
	a.stream.Close()
	return nil
}
