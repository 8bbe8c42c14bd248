// Package cli implements the promptctl commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/promptkit"
	"github.com/zero-day-ai/promptkit/config"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/prompt"
	"github.com/zero-day-ai/promptkit/tokenizer"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	logLevel   string
	encoding   string
}

// NewRootCmd builds the promptctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "promptctl",
		Short: "Render and complete prompt templates",
		Long: `promptctl works with a folder of prompt templates described by promptkit.yaml.

  promptctl render <template>     Show the prompt as it would be sent
  promptctl complete <template>   Complete the prompt with validation and repair
  promptctl plan <template>       Complete the prompt and print the DO/SAY plan`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", ".",
		"Path to promptkit.yaml or the directory containing it")
	root.PersistentFlags().StringVar(&opts.logLevel, "log", "warn",
		"Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&opts.encoding, "encoding", "",
		"Count tokens with this tiktoken encoding (e.g. cl100k_base) instead of words")

	root.AddCommand(newRenderCmd(opts), newCompleteCmd(opts), newPlanCmd(opts))
	return root
}

// session is what every command needs for one template.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	tok      tokenizer.Tokenizer
	template *prompt.Template
}

func (o *rootOptions) open(cmd *cobra.Command, name string) (*session, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", o.logLevel)
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, promptkit.NewConfigurationError("config.Load", err)
	}

	var tok tokenizer.Tokenizer = tokenizer.NewWord()
	if o.encoding != "" {
		gpt, err := tokenizer.NewGPT(o.encoding)
		if err != nil {
			return nil, err
		}
		tok = gpt
	}

	tmpl, err := cfg.NewManager().GetTemplate(name)
	if err != nil {
		return nil, promptkit.NewNotFoundError("GetTemplate", err)
	}

	return &session{cfg: cfg, logger: logger, tok: tok, template: tmpl}, nil
}

// turnOptions are the flags shared by commands that complete a turn.
type turnOptions struct {
	input        string
	vars         []string
	conversation string
	user         string
}

func (t *turnOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.input, "input", "i", "", "User input for this turn")
	cmd.Flags().StringArrayVar(&t.vars, "var", nil, "Memory variable as scope.name=value (repeatable)")
	cmd.Flags().StringVar(&t.conversation, "conversation", "", "Conversation id for persisted state")
	cmd.Flags().StringVar(&t.user, "user", "", "User id for persisted state")
}

func (t *turnOptions) key() memory.Key {
	return memory.Key{ConversationID: t.conversation, UserID: t.user}
}

// apply writes the input and --var values into state.
func (t *turnOptions) apply(s *session, state *memory.State) error {
	for _, v := range t.vars {
		path, value, ok := strings.Cut(v, "=")
		if !ok {
			return fmt.Errorf("invalid --var %q: want scope.name=value", v)
		}
		if err := state.Set(path, value); err != nil {
			return err
		}
	}
	if t.input != "" {
		inputVar := promptkit.DefaultInputVariable
		if s.cfg.Client != nil && s.cfg.Client.InputVariable != "" {
			inputVar = s.cfg.Client.InputVariable
		}
		if err := state.Set(inputVar, t.input); err != nil {
			return err
		}
	}
	return nil
}

// runTurn loads persisted state, runs fn and saves the state back when fn
// succeeds.
func (s *session) runTurn(ctx context.Context, t *turnOptions, fn func(state *memory.State) error) error {
	store, err := s.cfg.NewStore()
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}

	state := memory.NewState()
	persist := store != nil && (t.conversation != "" || t.user != "")
	if store != nil {
		defer promptkit.CloseWithLog(store, s.logger, "state store")
	}
	if persist {
		if state, err = store.Load(ctx, t.key()); err != nil {
			return fmt.Errorf("load state: %w", err)
		}
	}

	if err := t.apply(s, state); err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}

	if persist {
		if err := store.Save(ctx, t.key(), state); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
	}
	return nil
}

func (s *session) newClient(extra ...promptkit.Option) (*promptkit.Client, error) {
	m, err := s.cfg.NewModel(s.logger)
	if err != nil {
		return nil, promptkit.NewConfigurationError("NewModel", err)
	}
	v, err := s.cfg.NewValidator(s.template)
	if err != nil {
		return nil, promptkit.NewConfigurationError("NewValidator", err)
	}

	opts := append(s.cfg.ClientOptions(),
		promptkit.WithValidator(v),
		promptkit.WithTokenizer(s.tok),
		promptkit.WithLogger(s.logger),
	)
	return promptkit.New(m, s.template, append(opts, extra...)...)
}
