// Package promptkit turns prompt templates into validated model responses.
//
// A Client pairs a model with a prompt template. Each call to
// CompletePrompt lays the template out within its token budget, asks the
// model for a completion, and checks the answer with a validator. Answers
// that fail validation are sent back to the model together with the
// validator's feedback, a bounded number of times, before the client gives
// up with an invalid_response status.
//
// # Core Concepts
//
// The runtime is split into small packages:
//
//   - prompt: token-budgeted prompt sections, templates and the folder-based Manager
//   - memory: scoped conversation state, forks and persistent stores
//   - model: the Model contract with OpenAI, Anthropic and scripted implementations
//   - validation: default, JSON and action validators
//   - planning: DO/SAY plan parsing and action dispatch
//   - config: YAML configuration for the promptctl tool
//
// # Getting Started
//
//	m, err := model.NewOpenAIModel(model.OpenAIConfig{APIKey: os.Getenv("OPENAI_API_KEY")})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	templates := prompt.NewManager(prompt.WithPromptsFolder("prompts"))
//	tmpl, err := templates.GetTemplate("chat")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := promptkit.New(m, tmpl,
//		promptkit.WithValidator(validation.NewJSONValidator()),
//		promptkit.WithMaxRepairAttempts(2),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	mem := memory.NewState()
//	_ = mem.Set("temp.input", "Find me a flight to Paris")
//	resp := client.CompletePrompt(ctx, mem, nil)
//	if !resp.Succeeded() {
//		log.Printf("completion failed: %s: %v", resp.Status, resp.Error)
//	}
//
// # Repair
//
// Repair attempts run against a fork of the caller's memory. The rejected
// answer and the feedback are appended to the history variable with a
// "-repair" suffix inside the fork only, so the real conversation history
// records just the user's input and the final accepted answer.
//
// # Observability
//
// Use WithLogger, WithTracer and WithMeter to plug in slog and
// OpenTelemetry. Each completion produces a "promptkit.complete_prompt" span
// with a child span per repair attempt, plus the promptkit.completions,
// promptkit.repairs and promptkit.completion.duration instruments.
package promptkit
