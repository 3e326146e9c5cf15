package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fortuna/kitscout/internal/campaign"
	"github.com/fortuna/kitscout/internal/outreach"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/spf13/cobra"
)

func (c *cli) campaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Create, list and run outreach campaigns",
	}
	cmd.AddCommand(c.campaignCreateCmd(), c.campaignListCmd(), c.campaignRunCmd())
	return cmd
}

func (c *cli) campaignCreateCmd() *cobra.Command {
	var (
		req     campaign.CreateRequest
		channel string
		status  string
	)
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a draft campaign for a segment",
		Long: `Create stores a draft campaign. The body may use {team_name}, {contact_name},
{league}, {location} and {team_type}; when it is empty the default template for
the channel and team type is used.

Example:
  scoutctl campaign create "Spring youth kits" --channel email --team-type youth`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			req.Name = args[0]
			req.Channel = outreach.Channel(channel)
			req.Filter.Status = store.LeadStatus(status)

			created, err := a.Campaigns.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&channel, "channel", string(outreach.ChannelEmail), "email, sms or whatsapp")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "email subject")
	cmd.Flags().StringVar(&req.Body, "body", "", "message body template")
	cmd.Flags().StringVar(&req.Filter.TeamType, "team-type", "", "segment: team type")
	cmd.Flags().StringVar(&req.Filter.CompetitiveLevel, "level", "", "segment: competitive level")
	cmd.Flags().StringVar(&req.Filter.BuyingPotential, "potential", "", "segment: buying potential")
	cmd.Flags().StringVar(&status, "status", "", "segment: lead status")
	return cmd
}

func (c *cli) campaignListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.components(cmd.Context())
			if err != nil {
				return err
			}
			campaigns, err := a.Campaigns.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), campaigns)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum campaigns to list")
	return cmd
}

func (c *cli) campaignRunCmd() *cobra.Command {
	var rateLimit time.Duration
	cmd := &cobra.Command{
		Use:   "run [campaign id]",
		Short: "Send a campaign to its eligible leads",
		Long: `Run sends a draft campaign to every eligible lead, one at a time at the
channel's rate limit, printing progress as it goes. Interrupting the run leaves
the campaign paused with the counts of what was sent; paused campaigns do not
run again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid campaign id %q", args[0])
			}
			a, err := c.components(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.ErrOrStderr()
			report, err := a.Campaigns.Run(cmd.Context(), id, campaign.RunOptions{
				RateLimit: rateLimit,
				OnProgress: func(p campaign.Progress) {
					if p.Done || p.Last == nil {
						return
					}
					state := "sent"
					if !p.Last.Success {
						state = "failed: " + p.Last.Error
					}
					fmt.Fprintf(out, "[%d/%d] %s %s\n", p.Completed, p.Total, p.Last.Address, state)
				},
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().DurationVar(&rateLimit, "rate-limit", 0, "delay between messages (default: channel rate)")
	return cmd
}
