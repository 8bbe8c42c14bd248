package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/promptkit/memory"
)

func newRenderCmd(root *rootOptions) *cobra.Command {
	var (
		turn      turnOptions
		asText    bool
		maxTokens int
	)

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template without calling a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd, args[0])
			if err != nil {
				return err
			}
			if maxTokens <= 0 {
				maxTokens = s.template.Config.Completion.MaxInputTokens
			}

			state := memory.NewState()
			if err := turn.apply(s, state); err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if asText {
				r, err := s.template.Prompt.RenderAsText(ctx, state, nil, s.tok, maxTokens)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, r.Output)
				fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d/%d too_long: %t\n", r.Length, maxTokens, r.TooLong)
				return nil
			}

			r, err := s.template.Prompt.RenderAsMessages(ctx, state, nil, s.tok, maxTokens)
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(r.Output, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d/%d too_long: %t\n", r.Length, maxTokens, r.TooLong)
			return nil
		},
	}

	cmd.Flags().StringVarP(&turn.input, "input", "i", "", "User input")
	cmd.Flags().StringArrayVar(&turn.vars, "var", nil, "Memory variable as scope.name=value (repeatable)")
	cmd.Flags().BoolVar(&asText, "text", false, "Render as a single text block instead of messages")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Token budget (default: the template's max_input_tokens)")
	return cmd
}
