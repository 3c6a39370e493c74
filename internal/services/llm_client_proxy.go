package services

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"tg-gemini/internal/adapters"
	"tg-gemini/internal/config"
	"tg-gemini/internal/vendors/gemini"
)

// ProviderClient is one generative backend. Requests are routed to it by the
// provider name configured for the requested model.
type ProviderClient interface {
	Provider() string
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (adapters.LLMStream, error)
}

type LLMClientProxy struct {
	supportedModels map[string]config.ModelInfo
	providers       map[string]ProviderClient
}

func NewLLMClientProxy() *LLMClientProxy {
	return &LLMClientProxy{
		supportedModels: make(map[string]config.ModelInfo),
		providers:       make(map[string]ProviderClient),
	}
}

func NewClientProxyFromConfig(cfg *config.Config) *LLMClientProxy {
	proxy := NewLLMClientProxy()
	proxy.registerProvider(adapters.NewGeminiAdapter(gemini.NewClient(os.Getenv("GEMINI_API_KEY"))))
	proxy.registerProvider(adapters.NewOpenaiAdapter(openai.NewClient(os.Getenv("OPENAI_API_KEY"))))
	for _, modelId := range cfg.Models.AvailableTextModels {
		proxy.registerAvailableModel(modelId, cfg.Models.Info[modelId])
	}
	return proxy
}

func (p *LLMClientProxy) registerProvider(client ProviderClient) {
	p.providers[client.Provider()] = client
}

func (p *LLMClientProxy) registerAvailableModel(modelId string, info config.ModelInfo) {
	if info.Provider == "" {
		info.Provider = "gemini"
	}
	p.supportedModels[modelId] = info
}

func (p *LLMClientProxy) IsModelRegistered(modelId string) bool {
	_, ok := p.supportedModels[modelId]
	return ok
}

func (p *LLMClientProxy) getClient(modelId string) (ProviderClient, error) {
	info, ok := p.supportedModels[modelId]
	if !ok {
		return nil, fmt.Errorf("model %s not found", modelId)
	}
	client, ok := p.providers[info.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not found", info.Provider)
	}
	return client, nil
}

func (p *LLMClientProxy) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	client, err := p.getClient(request.Model)
	if err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return client.CreateChatCompletion(ctx, request)
}

func (p *LLMClientProxy) CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (adapters.LLMStream, error) {
	client, err := p.getClient(request.Model)
	if err != nil {
		return nil, err
	}
	return client.CreateChatCompletionStream(ctx, request)
}
