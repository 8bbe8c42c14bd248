package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/promptkit/llm"
	"github.com/zero-day-ai/promptkit/memory"
)

// completion is the --json output of the complete command.
type completion struct {
	ID      string         `json:"id"`
	Status  llm.Status     `json:"status"`
	Content string         `json:"content,omitempty"`
	Value   any            `json:"value,omitempty"`
	Usage   llm.TokenUsage `json:"usage"`
	Error   string         `json:"error,omitempty"`
}

func newCompleteCmd(root *rootOptions) *cobra.Command {
	var (
		turn   turnOptions
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "complete <template>",
		Short: "Complete a template, validating and repairing the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd, args[0])
			if err != nil {
				return err
			}
			client, err := s.newClient()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			return s.runTurn(ctx, &turn, func(state *memory.State) error {
				resp := client.CompletePrompt(ctx, state, nil)

				if asJSON {
					out := completion{
						ID:      resp.ID,
						Status:  resp.Status,
						Content: resp.Content(),
						Usage:   resp.Usage,
					}
					if resp.Message != nil {
						out.Value = resp.Message.Value
					}
					if resp.Error != nil {
						out.Error = resp.Error.Error()
					}
					b, err := json.MarshalIndent(out, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(b))
				} else if resp.Succeeded() {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Content())
				}

				if !resp.Succeeded() {
					return fmt.Errorf("completion %s: %v", resp.Status, resp.Error)
				}
				return nil
			})
		},
	}

	turn.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	return cmd
}
