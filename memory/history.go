package memory

import "github.com/zero-day-ai/promptkit/llm"

// History reads the message list stored at path, newest first.
func History(mem Memory, path string) []llm.Message {
	v, ok := mem.Get(path)
	if !ok {
		return nil
	}
	return llm.MessagesFrom(v)
}

// AppendHistory inserts msgs at the front of the list stored at path, so the
// last message given ends up at index 0. When max is positive the oldest
// entries beyond max are dropped. The list is written back with a single Set.
func AppendHistory(mem Memory, path string, max int, msgs ...llm.Message) error {
	current := History(mem, path)

	updated := make([]llm.Message, 0, len(current)+len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		updated = append(updated, msgs[i])
	}
	updated = append(updated, current...)

	if max > 0 && len(updated) > max {
		updated = updated[:max]
	}
	return mem.Set(path, updated)
}
