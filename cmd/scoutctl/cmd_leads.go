package main

import (
	"fmt"
	"os"

	"github.com/fortuna/kitscout/internal/store"
	"github.com/spf13/cobra"
)

// leadFilterFlags binds the filter flags shared by the leads subcommands.
func leadFilterFlags(cmd *cobra.Command, f *store.LeadFilter) {
	cmd.Flags().Var((*statusValue)(&f.Status), "status", "only leads in this status")
	cmd.Flags().StringVar(&f.TeamType, "team-type", "", "only leads of this team type")
	cmd.Flags().StringVar(&f.CompetitiveLevel, "level", "", "only leads at this competitive level")
	cmd.Flags().StringVar(&f.BuyingPotential, "potential", "", "only leads with this buying potential")
	cmd.Flags().BoolVar(&f.HasEmail, "has-email", false, "only leads with an email address")
	cmd.Flags().BoolVar(&f.HasPhone, "has-phone", false, "only leads with a phone number")
}

// statusValue is a pflag.Value that rejects unknown lead statuses.
type statusValue store.LeadStatus

func (s *statusValue) String() string { return string(*s) }
func (s *statusValue) Type() string   { return "status" }

func (s *statusValue) Set(v string) error {
	st := store.LeadStatus(v)
	if !st.Valid() {
		return fmt.Errorf("unknown lead status %q", v)
	}
	*s = statusValue(st)
	return nil
}

func (c *cli) leadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Inspect and maintain stored leads",
	}
	cmd.AddCommand(c.leadsExportCmd(), c.leadsValidateCmd(), c.leadsSegmentCmd())
	return cmd
}

func (c *cli) leadsExportCmd() *cobra.Command {
	var (
		filter store.LeadFilter
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write leads as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			n, err := a.Leads.Export(cmd.Context(), out, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d leads\n", n)
			return nil
		},
	}
	leadFilterFlags(cmd, &filter)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *cli) leadsValidateCmd() *cobra.Command {
	var filter store.LeadFilter
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the email address of every matching lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.Leads.ValidateEmails(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	leadFilterFlags(cmd, &filter)
	return cmd
}

func (c *cli) leadsSegmentCmd() *cobra.Command {
	var filter store.LeadFilter
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Classify every matching lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.Leads.Segment(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	leadFilterFlags(cmd, &filter)
	return cmd
}
