package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used by current OpenAI chat models.
const DefaultEncoding = "cl100k_base"

// GPT is a byte-pair tokenizer backed by tiktoken.
type GPT struct {
	enc *tiktoken.Tiktoken
}

// NewGPT loads the named BPE encoding. An empty name selects DefaultEncoding.
// The first load of an encoding may fetch its rank file over the network.
func NewGPT(encoding string) (*GPT, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &GPT{enc: enc}, nil
}

// NewGPTForModel loads the encoding registered for a model name.
func NewGPTForModel(model string) (*GPT, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load encoding for model %s: %w", model, err)
	}
	return &GPT{enc: enc}, nil
}

// Encode returns the BPE ids for text. Special tokens are encoded as text.
func (g *GPT) Encode(text string) []int {
	return g.enc.Encode(text, nil, nil)
}

// Decode returns the text for ids.
func (g *GPT) Decode(tokens []int) string {
	return g.enc.Decode(tokens)
}
