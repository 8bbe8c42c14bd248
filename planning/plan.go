package planning

import (
	"encoding/json"
	"strings"
)

// Command and plan type tags.
const (
	TypePlan   = "plan"
	CommandDo  = "DO"
	CommandSay = "SAY"
)

// Command is a DoCommand or a SayCommand.
type Command interface {
	// Type returns CommandDo or CommandSay.
	Type() string
}

// DoCommand asks for an action to be run.
type DoCommand struct {
	Action   string
	Entities map[string]any
}

func (DoCommand) Type() string { return CommandDo }

// MarshalJSON encodes the command with its type first.
func (c DoCommand) MarshalJSON() ([]byte, error) {
	entities := c.Entities
	if entities == nil {
		entities = map[string]any{}
	}
	return json.Marshal(struct {
		Type     string         `json:"type"`
		Action   string         `json:"action"`
		Entities map[string]any `json:"entities"`
	}{CommandDo, c.Action, entities})
}

// SayCommand sends text to the user.
type SayCommand struct {
	Response string
}

func (SayCommand) Type() string { return CommandSay }

// MarshalJSON encodes the command with its type first.
func (c SayCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Response string `json:"response"`
	}{CommandSay, c.Response})
}

// Plan is an ordered list of commands.
type Plan struct {
	Commands []Command
}

// MarshalJSON encodes the plan in its wire form.
func (p Plan) MarshalJSON() ([]byte, error) {
	commands := p.Commands
	if commands == nil {
		commands = []Command{}
	}
	return json.Marshal(struct {
		Type     string    `json:"type"`
		Commands []Command `json:"commands"`
	}{TypePlan, commands})
}

// UnmarshalJSON decodes the wire form with DecodePlan.
func (p *Plan) UnmarshalJSON(data []byte) error {
	decoded, err := DecodePlan(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// Actions returns the names of the plan's DO commands in order.
func (p *Plan) Actions() []string {
	var names []string
	for _, c := range p.Commands {
		if do, ok := c.(DoCommand); ok {
			names = append(names, do.Action)
		}
	}
	return names
}

// Say returns the text of the plan's SAY commands joined by newlines.
func (p *Plan) Say() string {
	var parts []string
	for _, c := range p.Commands {
		if say, ok := c.(SayCommand); ok {
			parts = append(parts, say.Response)
		}
	}
	return strings.Join(parts, "\n")
}

// FilterOneSayPerTurn keeps the first SAY command and every DO command,
// preserving their order.
func FilterOneSayPerTurn(commands []Command) []Command {
	filtered := make([]Command, 0, len(commands))
	said := false
	for _, c := range commands {
		if _, ok := c.(SayCommand); ok {
			if said {
				continue
			}
			said = true
		}
		filtered = append(filtered, c)
	}
	return filtered
}
