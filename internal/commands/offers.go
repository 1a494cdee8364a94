package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"offer-tracker/internal/filters"
	"offer-tracker/internal/models"
	"offer-tracker/internal/offers"
	"offer-tracker/internal/service"
)

func addList(topLevel *cobra.Command) {
	var (
		preset  string
		channel string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List offers",
		Example: `
offerctl list
offerctl list --range thisWeek --channel Phone
`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(_ context.Context, rt *service.Runtime) error {
				state := filters.State{Preset: filters.Preset(preset)}
				if channel != "" {
					state.Channels = []string{channel}
				}
				if _, err := rt.Filters.Set(state); err != nil {
					return err
				}
				writeOffers(cmd.OutOrStdout(), rt.FilteredOffers(), rt.Now())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&preset, "range", string(filters.AllTime), "date range preset, e.g. today, thisWeek, lastMonth, allTime")
	cmd.Flags().StringVar(&channel, "channel", "", "only offers made through this channel")
	topLevel.AddCommand(cmd)
}

func addAdd(topLevel *cobra.Command) {
	var (
		in        models.OfferInput
		followup  string
		converted string
		csat      string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "add <case number>",
		Short: "Log a new offer",
		Example: `
offerctl add CASE-1042 --channel Phone --type Upgrade --followup 2025-06-10
offerctl add CASE-1043 --channel Chat --type Add-on --converted today --csat positive
`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("requires a case number")
			}
			in.CaseNumber = strings.Join(args, " ")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *service.Runtime) error {
				var err error
				if in.FollowupDate, err = dateFlag(followup, rt.Now()); err != nil {
					return fmt.Errorf("invalid --followup: %w", err)
				}
				if in.ConversionDate, err = dateFlag(converted, rt.Now()); err != nil {
					return fmt.Errorf("invalid --converted: %w", err)
				}
				in.CSAT = models.CSAT(csat)

				resp, err := rt.CreateOffer(ctx, in, force)
				var dup *service.DuplicateError
				if errors.As(err, &dup) {
					fmt.Fprintln(cmd.OutOrStdout(), yellow.Sprintf("Case %s was already logged on %s (id %s).",
						dup.Existing.CaseNumber, dup.Existing.Date.Format("Jan 2, 2006"), shortID(dup.Existing.ID)))
					return errors.New("duplicate case number, rerun with --force to log it anyway")
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", green.Sprint("Logged"), resp.Offer.CaseNumber, resp.Offer.ID)
				if resp.Duplicate != nil {
					fmt.Fprintln(cmd.OutOrStdout(), yellow.Sprintf("Note: case %s also logged as %s.",
						resp.Duplicate.CaseNumber, shortID(resp.Duplicate.ID)))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Channel, "channel", "", "channel the offer was made through")
	cmd.Flags().StringVar(&in.OfferType, "type", "", "offer type")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&followup, "followup", "", "follow-up date (YYYY-MM-DD, RFC3339, today or tomorrow)")
	cmd.Flags().StringVar(&converted, "converted", "", "conversion date (YYYY-MM-DD, RFC3339 or today)")
	cmd.Flags().StringVar(&csat, "csat", "", "customer satisfaction: positive, neutral or negative")
	cmd.Flags().BoolVar(&force, "force", false, "log the offer even if the case number exists")
	topLevel.AddCommand(cmd)
}

func addFollowups(topLevel *cobra.Command) {
	var days int

	cmd := &cobra.Command{
		Use:     "followups",
		Aliases: []string{"due"},
		Short:   "Show due and upcoming follow-ups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(_ context.Context, rt *service.Runtime) error {
				now := rt.Now()
				out := cmd.OutOrStdout()

				fmt.Fprintln(out, bold.Sprint("Due"))
				writeOffers(out, rt.Offers.CheckFollowups(now), now)
				fmt.Fprintln(out)
				fmt.Fprintln(out, bold.Sprintf("Next %d days", days))
				writeOffers(out, rt.Offers.Upcoming(now, time.Duration(days)*24*time.Hour), now)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "how far ahead to look for upcoming follow-ups")
	topLevel.AddCommand(cmd)
}

func addComplete(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "complete [offer id]",
		Aliases: []string{"done"},
		Short:   "Complete a follow-up; without an id the most overdue one is completed",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *service.Runtime) error {
				var (
					offer models.Offer
					err   error
				)
				if len(args) == 1 {
					var id string
					if id, err = resolveID(rt, args[0]); err != nil {
						return err
					}
					offer, err = rt.Offers.CompleteFollowup(ctx, id)
				} else {
					offer, err = rt.Offers.CompleteNextFollowup(ctx, rt.Now())
				}
				if errors.Is(err, offers.ErrNoFollowupDue) {
					fmt.Fprintln(cmd.OutOrStdout(), faint.Sprint("Nothing is due."))
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s follow-up for %s\n", green.Sprint("Completed"), offer.CaseNumber)
				return nil
			})
		},
	}

	topLevel.AddCommand(cmd)
}

// resolveID expands a unique id prefix, as printed by list.
func resolveID(rt *service.Runtime, prefix string) (string, error) {
	var matches []string
	for _, o := range rt.Offers.List() {
		if o.ID == prefix {
			return o.ID, nil
		}
		if strings.HasPrefix(o.ID, prefix) {
			matches = append(matches, o.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s: %w", prefix, offers.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
}

func dateFlag(value string, now time.Time) (models.Field[time.Time], error) {
	switch strings.ToLower(value) {
	case "":
		return models.Field[time.Time]{}, nil
	case "today":
		return models.Some(now), nil
	case "tomorrow":
		return models.Some(now.AddDate(0, 0, 1)), nil
	}
	t, err := models.ParseTime(value)
	if err != nil {
		return models.Field[time.Time]{}, err
	}
	return models.Some(t), nil
}
