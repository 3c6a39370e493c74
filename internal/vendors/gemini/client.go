package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		baseURL:    "https://generativelanguage.googleapis.com",
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake server.
func NewClientWithBaseURL(apiKey string, baseURL string) *Client {
	client := NewClient(apiKey)
	client.baseURL = baseURL
	return client
}

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type GenerateContentRequest struct {
	Contents          []Content         `json:"contents"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Text returns the concatenated text parts of the first candidate.
func (r GenerateContentResponse) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	text := ""
	for _, part := range r.Candidates[0].Content.Parts {
		text += part.Text
	}
	return text
}

func (c *Client) GenerateContent(ctx context.Context, model string, request GenerateContentRequest) (GenerateContentResponse, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	resp, err := c.rawRequest(ctx, url, request)
	if err != nil {
		return GenerateContentResponse{}, err
	}
	defer resp.Body.Close()

	var response GenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return GenerateContentResponse{}, err
	}
	return response, nil
}

func (c *Client) StreamGenerateContent(ctx context.Context, model string, request GenerateContentRequest) (*StreamedResponse, error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, model, c.apiKey)
	resp, err := c.rawRequest(ctx, url, request)
	if err != nil {
		return nil, err
	}
	return NewStreamedResponse(resp), nil
}

func (c *Client) rawRequest(ctx context.Context, url string, request GenerateContentRequest) (*http.Response, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("server returned non-200 status: %d %s: %s", resp.StatusCode, resp.Status, bytes.TrimSpace(body))
	}
	return resp, nil
}

// StreamedResponse yields one GenerateContentResponse per server-sent event.
// Recv returns io.EOF after the last event.
type StreamedResponse struct {
	resp   *http.Response
	reader *bufio.Reader
}

func NewStreamedResponse(resp *http.Response) *StreamedResponse {
	return &StreamedResponse{resp: resp, reader: bufio.NewReader(resp.Body)}
}

func (s *StreamedResponse) Close() {
	s.resp.Body.Close()
}

func (s *StreamedResponse) Recv() (GenerateContentResponse, error) {
	for {
		rawLine, err := s.reader.ReadBytes('\n')
		if err != nil {
			return GenerateContentResponse{}, err
		}
		cleanLine := bytes.TrimSpace(rawLine)
		dataLine, ok := bytes.CutPrefix(cleanLine, []byte("data: "))
		if !ok {
			continue
		}

		var chunk GenerateContentResponse
		if err := json.Unmarshal(dataLine, &chunk); err != nil {
			return GenerateContentResponse{}, err
		}
		return chunk, nil
	}
}
