package tokenizer

import (
	"sync"
	"unicode"
	"unicode/utf8"
)

// Word is a deterministic tokenizer that splits text the way GPT-style
// pre-tokenizers do: a single leading space sticks to the following word,
// number or punctuation run, and other whitespace runs are tokens of their own.
// Ids are assigned on first sight, so two Word instances may number the same
// piece differently. The zero value is not usable; call NewWord.
type Word struct {
	mu     sync.Mutex
	ids    map[string]int
	pieces []string
}

// NewWord returns an empty word tokenizer.
func NewWord() *Word {
	return &Word{ids: make(map[string]int)}
}

// Encode splits text into pieces and maps each to its id.
func (w *Word) Encode(text string) []int {
	pieces := Split(text)
	if len(pieces) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int, len(pieces))
	for i, p := range pieces {
		id, ok := w.ids[p]
		if !ok {
			id = len(w.pieces)
			w.ids[p] = id
			w.pieces = append(w.pieces, p)
		}
		ids[i] = id
	}
	return ids
}

// Decode concatenates the pieces for ids. Unknown ids are skipped.
func (w *Word) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var size int
	for _, id := range tokens {
		if id >= 0 && id < len(w.pieces) {
			size += len(w.pieces[id])
		}
	}

	buf := make([]byte, 0, size)
	for _, id := range tokens {
		if id >= 0 && id < len(w.pieces) {
			buf = append(buf, w.pieces[id]...)
		}
	}
	return string(buf)
}

type class int

const (
	classSpace class = iota
	classLetter
	classDigit
	classOther
)

func classify(r rune) class {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsLetter(r):
		return classLetter
	case unicode.IsDigit(r):
		return classDigit
	default:
		return classOther
	}
}

// Split returns the pieces Word would assign ids to.
func Split(text string) []string {
	var pieces []string
	start := 0

	for start < len(text) {
		r, size := utf8.DecodeRuneInString(text[start:])
		end := start + size
		c := classify(r)

		if c == classSpace {
			for end < len(text) {
				next, n := utf8.DecodeRuneInString(text[end:])
				if classify(next) != classSpace {
					break
				}
				end += n
			}
			// Hand a trailing plain space to the following word.
			if end < len(text) && end-start > 1 && text[end-1] == ' ' {
				end--
			} else if end < len(text) && end-start == 1 && r == ' ' {
				next, n := utf8.DecodeRuneInString(text[end:])
				c = classify(next)
				end += n
				end = scanRun(text, end, c)
			}
			pieces = append(pieces, text[start:end])
			start = end
			continue
		}

		end = scanRun(text, end, c)
		pieces = append(pieces, text[start:end])
		start = end
	}
	return pieces
}

func scanRun(text string, end int, c class) int {
	for end < len(text) {
		next, n := utf8.DecodeRuneInString(text[end:])
		if classify(next) != c {
			break
		}
		end += n
	}
	return end
}
