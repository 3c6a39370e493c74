package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"

	"tg-gemini/internal/adapters"
	"tg-gemini/internal/config"
	"tg-gemini/internal/models"
)

const (
	StatusNotFinished = "not_finished"
	StatusFinished    = "finished"
)

// CompletionEvent is one incremental piece of a streamed answer. Answer is
// the accumulated text so far; only the finished event's answer is
// whitespace-trimmed, so incremental rendering sees raw partial text.
type CompletionEvent struct {
	Status       string
	Answer       string
	InputTokens  int64
	OutputTokens int64
	Cost         float64 // reserved, always zero
	Err          error
}

type LLMClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (adapters.LLMStream, error)
}

// CompletionService builds role-tagged prompts from dialog history and
// produces answers either in one shot or as an ordered event stream.
type CompletionService struct {
	client    LLMClient
	chatModes map[string]config.ChatMode
}

func NewCompletionService(client LLMClient, chatModes map[string]config.ChatMode) *CompletionService {
	return &CompletionService{client: client, chatModes: chatModes}
}

// SendMessage is the blocking variant. It returns the trimmed answer, the
// approximate token usage and the cost placeholder.
func (s *CompletionService) SendMessage(ctx context.Context, model string, chatMode string, history []models.Turn, userText string) (string, models.TokenUsage, float64, error) {
	messages, err := s.buildPrompt(chatMode, history, userText)
	if err != nil {
		return "", models.TokenUsage{}, 0, err
	}

	response, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", models.TokenUsage{}, 0, &models.BackendError{Err: err}
	}

	answer := ""
	if len(response.Choices) > 0 {
		answer = response.Choices[0].Message.Content
	}
	answer = strings.TrimSpace(answer)
	usage := models.TokenUsage{
		InputTokens:  countPromptTokens(messages),
		OutputTokens: countTokens(answer),
	}
	return answer, usage, 0, nil
}

// SendMessageStream produces a finite ordered sequence of events consumed by
// a single subscriber. The finished event is emitted exactly once, after the
// backend signals end of stream. A mid-stream failure yields a single error
// event and no finished event; what was rendered must be discarded.
func (s *CompletionService) SendMessageStream(ctx context.Context, model string, chatMode string, history []models.Turn, userText string) (<-chan CompletionEvent, error) {
	messages, err := s.buildPrompt(chatMode, history, userText)
	if err != nil {
		return nil, err
	}

	eventsCh := make(chan CompletionEvent)
	go func() {
		defer close(eventsCh)

		stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    model,
			Messages: messages,
		})
		if err != nil {
			eventsCh <- CompletionEvent{Err: &models.BackendError{Err: err}}
			return
		}
		defer stream.Close()

		inputTokens := countPromptTokens(messages)
		answer := ""
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			answer += chunk.Choices[0].Delta.Content
			eventsCh <- CompletionEvent{
				Status:       StatusNotFinished,
				Answer:       answer,
				InputTokens:  inputTokens,
				OutputTokens: countTokens(answer),
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			eventsCh <- CompletionEvent{Err: &models.BackendError{Err: err}}
			return
		}

		answer = strings.TrimSpace(answer)
		eventsCh <- CompletionEvent{
			Status:       StatusFinished,
			Answer:       answer,
			InputTokens:  inputTokens,
			OutputTokens: countTokens(answer),
		}
	}()
	return eventsCh, nil
}

// buildPrompt emits the chat mode's system prompt, then the prior turns in
// chronological order as alternating user/assistant entries, then the new
// message. An unknown chat mode fails before any backend call.
func (s *CompletionService) buildPrompt(chatMode string, history []models.Turn, userText string) ([]openai.ChatCompletionMessage, error) {
	mode, ok := s.chatModes[chatMode]
	if !ok {
		return nil, &models.ValidationError{Message: fmt.Sprintf("chat mode %s is not supported", chatMode)}
	}

	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: mode.PromptStart,
	}}
	for _, turn := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.User},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Bot},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})
	return messages, nil
}

// The backend does not report token counts, so both sides are approximated by
// counting whitespace-delimited words. The same approximation must be used
// everywhere for the accumulated usage history to stay consistent.
func countTokens(text string) int64 {
	return int64(len(strings.Fields(text)))
}

func countPromptTokens(messages []openai.ChatCompletionMessage) int64 {
	var total int64
	for _, message := range messages {
		total += countTokens(message.Content)
	}
	return total
}
