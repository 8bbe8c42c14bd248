// Package planning turns model output into a plan of commands and executes
// it against registered action handlers.
//
// A plan is an ordered list of two kinds of command: DO runs a named action
// with entities, SAY sends text to the user.
//
// # Parsing
//
// Models answer either with a plan object
//
//	{"type": "plan", "commands": [
//	    {"type": "DO", "action": "book_flight", "entities": {"to": "Paris"}},
//	    {"type": "SAY", "response": "Booked!"}
//	]}
//
// or with free text in the DO/SAY format:
//
//	DO book_flight to=Paris date="next friday" THEN SAY Booked!
//
// ParseResponse accepts both. The text format is parsed leniently: a
// leading THEN is ignored, keywords are case-insensitive at the start of a
// command, quoted values may be missing their closing quote and fragments
// that cannot be decoded are dropped.
//
// # Executing
//
// Handlers are registered by name on a Registry before use:
//
//	registry := planning.NewRegistry()
//	_ = registry.Register("book_flight", func(ctx context.Context, mem memory.Memory, entities map[string]any) (string, error) {
//	    return "booked", nil
//	})
//	results, err := registry.Execute(ctx, mem, plan)
//
// A Planner ties the pieces together: it completes a prompt, parses the
// response, applies the one-SAY-per-turn policy and runs the plan.
package planning
