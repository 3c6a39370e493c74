package adapters

import (
	"github.com/sashabaranov/go-openai"
)

// LLMStream iterates over streamed completion chunks. Next returns false on
// stream end or failure; Err distinguishes the two (io.EOF means a normal
// end of stream).
type LLMStream interface {
	Next() bool
	Current() openai.ChatCompletionStreamResponse
	Close() error
	Err() error
}
