package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tallybot/app/internal/tracker"
	"go.uber.org/zap"
)

func buildChannelCommands(logger *zap.Logger) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Channel registry commands",
		Long:  "Inspect and adjust the registered accountability channels.",
	}

	channelListCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered channels",
		Long:  "List every channel registered for daily accountability tracking.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannelList(logger)
		},
	}

	channelTimezoneCmd := &cobra.Command{
		Use:   "timezone <channel-id> <zone>",
		Short: "Update a channel's timezone",
		Long:  "Set the IANA timezone used for a channel's daily cycle.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChannelTimezone(logger, args[0], args[1])
		},
	}

	channelCmd.AddCommand(channelListCmd)
	channelCmd.AddCommand(channelTimezoneCmd)

	return channelCmd
}

func runChannelList(logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	trk, cleanup, err := newTracker(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracker: %w", err)
	}
	defer cleanup()

	channels, err := trk.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels: %w", err)
	}

	if len(channels) == 0 {
		fmt.Println("No channels registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTIMEZONE\tLINKED GROUP\tREGISTERED")
	for _, ch := range channels {
		linked := "-"
		if ch.LinkedGroupID != 0 {
			linked = strconv.FormatInt(ch.LinkedGroupID, 10)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			ch.ID, ch.Title, ch.Timezone, linked, ch.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func runChannelTimezone(logger *zap.Logger, channelArg, zone string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	channelID, err := strconv.ParseInt(channelArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel id %q", channelArg)
	}

	trk, cleanup, err := newTracker(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracker: %w", err)
	}
	defer cleanup()

	if err := trk.SetTimezone(ctx, channelID, zone); err != nil {
		switch {
		case errors.Is(err, tracker.ErrInvalidTimezone):
			return fmt.Errorf("%q is not a valid IANA timezone", zone)
		case errors.Is(err, tracker.ErrChannelNotFound):
			return fmt.Errorf("channel %d is not registered", channelID)
		default:
			return err
		}
	}

	fmt.Printf("Channel %d timezone set to %s\n", channelID, zone)
	return nil
}
