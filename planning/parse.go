package planning

import (
	"strings"

	"github.com/zero-day-ai/promptkit/parser"
)

// ParseResponse extracts a plan from model output. A plan object embedded
// in the text wins; otherwise the text is parsed as DO/SAY commands. Text
// with no commands yields an empty plan.
func ParseResponse(text string) *Plan {
	if obj, ok := parser.ExtractObject(text); ok {
		if plan, err := DecodePlan([]byte(obj)); err == nil {
			return plan
		}
	}
	return &Plan{Commands: ParseCommands(text)}
}

// ParseCommands parses DO/SAY text line by line.
//
// A command starts with DO or SAY in any case, optionally preceded by THEN.
// DO is followed by an action name and key=value entities whose values may
// be quoted with ", ' or `. SAY takes the rest of the line up to the next
// upper-case DO or SAY. A line that does not start with a command is said;
// consecutive such lines after a SAY continue it. Anything else is dropped.
func ParseCommands(text string) []Command {
	var commands []Command
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		commands = parseLine(line, commands)
	}
	return commands
}

func parseLine(line string, commands []Command) []Command {
	sc := &scanner{text: line}

	if keyword(sc.peekWord()) == "" {
		text := sc.sayText()
		if n := len(commands); n > 0 {
			if say, ok := commands[n-1].(SayCommand); ok {
				commands[n-1] = SayCommand{Response: say.Response + "\n" + text}
				return parseCommands(sc, commands)
			}
		}
		commands = append(commands, SayCommand{Response: text})
	}
	return parseCommands(sc, commands)
}

func parseCommands(sc *scanner, commands []Command) []Command {
	for {
		sc.skipSpace()
		if sc.done() {
			return commands
		}

		switch keyword(sc.peekWord()) {
		case "THEN":
			sc.nextWord()
		case CommandDo:
			sc.nextWord()
			if cmd, ok := sc.doCommand(); ok {
				commands = append(commands, cmd)
			}
		case CommandSay:
			sc.nextWord()
			if text := sc.sayText(); text != "" {
				commands = append(commands, SayCommand{Response: text})
			}
		default:
			sc.nextWord()
		}
	}
}

// keyword returns the upper-cased command keyword word stands for, or "".
func keyword(word string) string {
	switch kw := strings.ToUpper(strings.TrimSuffix(word, ":")); kw {
	case CommandDo, CommandSay, "THEN":
		return kw
	}
	return ""
}

type scanner struct {
	text string
	pos  int
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r'
}

func isQuote(ch byte) bool {
	return ch == '"' || ch == '\'' || ch == '`'
}

func (s *scanner) done() bool {
	return s.pos >= len(s.text)
}

func (s *scanner) skipSpace() {
	for !s.done() && isSpace(s.text[s.pos]) {
		s.pos++
	}
}

func (s *scanner) wordEnd(from int) int {
	end := from
	for end < len(s.text) && !isSpace(s.text[end]) {
		end++
	}
	return end
}

func (s *scanner) peekWord() string {
	s.skipSpace()
	return s.text[s.pos:s.wordEnd(s.pos)]
}

func (s *scanner) nextWord() string {
	s.skipSpace()
	start := s.pos
	s.pos = s.wordEnd(start)
	return s.text[start:s.pos]
}

// doCommand reads an action name and its entities. It stops before the
// next keyword.
func (s *scanner) doCommand() (DoCommand, bool) {
	if keyword(s.peekWord()) != "" {
		return DoCommand{}, false
	}
	action := strings.Trim(s.nextWord(), ",;:")
	if action == "" {
		return DoCommand{}, false
	}

	cmd := DoCommand{Action: action, Entities: map[string]any{}}
	for {
		s.skipSpace()
		if s.done() || keyword(s.peekWord()) != "" {
			return cmd, true
		}

		word := s.peekWord()
		eq := strings.IndexByte(word, '=')
		if eq <= 0 {
			s.nextWord()
			continue
		}
		key := word[:eq]
		s.pos += eq + 1
		cmd.Entities[key] = s.value()
	}
}

// value reads an entity value at the current position. A quoted value runs
// to the matching unescaped quote or the end of the line. A backslash keeps
// the character after it.
func (s *scanner) value() string {
	if s.done() {
		return ""
	}
	if quote := s.text[s.pos]; isQuote(quote) {
		var b strings.Builder
		for s.pos++; s.pos < len(s.text); s.pos++ {
			ch := s.text[s.pos]
			switch {
			case ch == '\\' && s.pos+1 < len(s.text):
				s.pos++
				b.WriteByte(s.text[s.pos])
			case ch == quote:
				s.pos++
				return b.String()
			default:
				b.WriteByte(ch)
			}
		}
		return b.String()
	}
	start := s.pos
	s.pos = s.wordEnd(start)
	return s.text[start:s.pos]
}

// sayText reads up to the next upper-case DO or SAY, or a THEN followed by
// one, and returns the trimmed text.
func (s *scanner) sayText() string {
	s.skipSpace()
	start := s.pos
	for cur := start; cur < len(s.text); {
		for cur < len(s.text) && isSpace(s.text[cur]) {
			cur++
		}
		end := s.wordEnd(cur)
		word := s.text[cur:end]
		if isBoundary(word) || (word == "THEN" && isBoundary(s.followingWord(end))) {
			s.pos = cur
			return strings.TrimSpace(s.text[start:cur])
		}
		cur = end
	}
	s.pos = len(s.text)
	return strings.TrimSpace(s.text[start:])
}

func (s *scanner) followingWord(from int) string {
	for from < len(s.text) && isSpace(s.text[from]) {
		from++
	}
	return s.text[from:s.wordEnd(from)]
}

func isBoundary(word string) bool {
	word = strings.TrimSuffix(word, ":")
	return word == CommandDo || word == CommandSay
}
