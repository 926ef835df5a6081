package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func buildTaskCommands(logger *zap.Logger) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Task ledger commands",
		Long:  "Inspect the tasks tracked for the current cycle.",
	}

	taskListCmd := &cobra.Command{
		Use:   "list <channel-id>",
		Short: "List a channel's tracked tasks",
		Long:  "List every task currently tracked for a channel, with owner and status.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskList(logger, args[0])
		},
	}

	taskCmd.AddCommand(taskListCmd)

	return taskCmd
}

func runTaskList(logger *zap.Logger, channelArg string) error {
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

	tasks, err := trk.ListTasks(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks tracked for this channel.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tSTATUS\tMESSAGE\tCREATED\tTEXT")
	for _, task := range tasks {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\t%s\n",
			task.ID, task.UserID, task.Status, task.GroupMessageID,
			task.CreatedAt.Format(time.RFC3339), task.Text)
	}
	return w.Flush()
}
