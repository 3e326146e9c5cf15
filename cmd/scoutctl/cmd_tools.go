package main

import (
	"github.com/fortuna/kitscout/internal/ai"
	"github.com/fortuna/kitscout/internal/segmentation"
	"github.com/fortuna/kitscout/internal/validation"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [email...]",
		Short: "Score email addresses for deliverability",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := validation.NewValidator(validation.WithLogger(c.log))
			results := v.ValidateBatch(cmd.Context(), args)
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
}

func (c *cli) classifyCmd() *cobra.Command {
	var in segmentation.Input
	cmd := &cobra.Command{
		Use:   "classify [team name]",
		Short: "Classify a team into a segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.TeamName = args[0]

			var model ai.Model
			if c.cfg.GeminiAPIKey != "" {
				m, err := ai.NewModel(cmd.Context(), c.cfg.GeminiAPIKey, c.cfg.GeminiModel)
				if err != nil {
					c.log.Warn("AI model unavailable", zap.Error(err))
				} else {
					model = m
				}
			}
			res := segmentation.NewClassifier(model, c.log).Classify(cmd.Context(), in)
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&in.League, "league", "", "league the team plays in")
	cmd.Flags().StringVar(&in.Location, "location", "", "team location")
	cmd.Flags().StringVar(&in.Website, "website", "", "team website")
	return cmd
}
