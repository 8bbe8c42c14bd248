package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/promptkit"
	"github.com/zero-day-ai/promptkit/config"
	"github.com/zero-day-ai/promptkit/memory"
	"github.com/zero-day-ai/promptkit/planning"
)

func newPlanCmd(root *rootOptions) *cobra.Command {
	var (
		turn    turnOptions
		oneSay  bool
		actions []string
	)

	cmd := &cobra.Command{
		Use:   "plan <template>",
		Short: "Complete a template and print the plan it returns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := root.open(cmd, args[0])
			if err != nil {
				return err
			}

			var extra []promptkit.Option
			if s.cfg.Validator.GetType() == config.ValidatorDefault {
				names := actions
				for _, a := range s.template.Actions {
					names = append(names, a.Name)
				}
				extra = append(extra, promptkit.WithValidator(planning.NewValidator(names...)))
			}
			client, err := s.newClient(extra...)
			if err != nil {
				return err
			}
			planner := planning.NewPlanner(client, nil,
				planning.WithOneSayPerTurn(oneSay),
				planning.WithLogger(s.logger))

			ctx := cmd.Context()
			return s.runTurn(ctx, &turn, func(state *memory.State) error {
				plan, err := planner.Plan(ctx, state, nil)
				if err != nil {
					return err
				}
				b, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return nil
			})
		},
	}

	turn.register(cmd)
	cmd.Flags().BoolVar(&oneSay, "one-say", false, "Keep only the first SAY command")
	cmd.Flags().StringSliceVar(&actions, "action", nil, "Allowed action name (repeatable)")
	return cmd
}
