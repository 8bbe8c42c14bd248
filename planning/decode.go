package planning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
)

// ErrInvalidPlan is returned by DecodePlan for documents that are not plans.
var ErrInvalidPlan = errors.New("planning: invalid plan")

// DecodePlan decodes a plan in its wire form. The decoder dispatches on
// "type" before reading anything else, so "type" must be the first key of
// the plan and of every command. Type tags are matched case-insensitively.
// Unknown keys are skipped. Comments and trailing commas are allowed.
func DecodePlan(data []byte) (*Plan, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	typ, err := readType(dec)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(typ, TypePlan) {
		return nil, fmt.Errorf("%w: type %q is not %q", ErrInvalidPlan, typ, TypePlan)
	}

	plan := &Plan{Commands: []Command{}}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != "commands" {
			if err := skipValue(dec); err != nil {
				return nil, err
			}
			continue
		}

		if err := expectDelim(dec, '['); err != nil {
			return nil, err
		}
		for dec.More() {
			cmd, err := decodeCommand(dec)
			if err != nil {
				return nil, fmt.Errorf("command %d: %w", len(plan.Commands), err)
			}
			plan.Commands = append(plan.Commands, cmd)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return plan, nil
}

func decodeCommand(dec *json.Decoder) (Command, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	typ, err := readType(dec)
	if err != nil {
		return nil, err
	}

	var cmd Command
	switch strings.ToUpper(typ) {
	case CommandDo:
		do := DoCommand{Entities: map[string]any{}}
		for dec.More() {
			key, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			switch key {
			case "action":
				if err := dec.Decode(&do.Action); err != nil {
					return nil, fmt.Errorf("%w: action: %v", ErrInvalidPlan, err)
				}
			case "entities":
				var entities map[string]any
				if err := dec.Decode(&entities); err != nil {
					return nil, fmt.Errorf("%w: entities: %v", ErrInvalidPlan, err)
				}
				if entities != nil {
					do.Entities = entities
				}
			default:
				if err := skipValue(dec); err != nil {
					return nil, err
				}
			}
		}
		cmd = do

	case CommandSay:
		var say SayCommand
		for dec.More() {
			key, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			if key != "response" {
				if err := skipValue(dec); err != nil {
					return nil, err
				}
				continue
			}
			if err := dec.Decode(&say.Response); err != nil {
				return nil, fmt.Errorf("%w: response: %v", ErrInvalidPlan, err)
			}
		}
		cmd = say

	default:
		return nil, fmt.Errorf("%w: unknown command type %q", ErrInvalidPlan, typ)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return cmd, nil
}

// readType reads the first key of an object, which must be "type", and
// returns its string value.
func readType(dec *json.Decoder) (string, error) {
	if !dec.More() {
		return "", fmt.Errorf("%w: missing type", ErrInvalidPlan)
	}
	key, err := readKey(dec)
	if err != nil {
		return "", err
	}
	if key != "type" {
		return "", fmt.Errorf("%w: expected \"type\" as the first key, got %q", ErrInvalidPlan, key)
	}
	var typ string
	if err := dec.Decode(&typ); err != nil {
		return "", fmt.Errorf("%w: type: %v", ErrInvalidPlan, err)
	}
	return typ, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected key, got %v", ErrInvalidPlan, tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrInvalidPlan, want, tok)
	}
	return nil
}

func skipValue(dec *json.Decoder) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return nil
}
