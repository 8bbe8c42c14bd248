// Package tokenizer defines the token encoding capability used to measure and
// truncate rendered prompt text, with a deterministic word-level tokenizer and
// a BPE tokenizer compatible with OpenAI models.
package tokenizer

// Tokenizer converts text to token ids and back. Decode(Encode(s)) must
// return s, and decoding a prefix of the ids must return a prefix of s.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Count returns the number of tokens text encodes to.
func Count(tok Tokenizer, text string) int {
	if text == "" {
		return 0
	}
	return len(tok.Encode(text))
}
