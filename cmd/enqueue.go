package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/check-cli/internal/worker"
)

var (
	enqueueImage  string
	enqueueTenant string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [check-id]",
	Short: "Queue a check for processing by the worker",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("enqueue"); err != nil {
			return err
		}

		var checkID string
		switch {
		case enqueueImage != "":
			st, err := initStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate store")
			}
			check, err := st.CreateCheck(ctx, newCheck(enqueueTenant, enqueueImage))
			if err != nil {
				return eris.Wrap(err, "create check")
			}
			checkID = check.ID
		case len(args) == 1:
			checkID = args[0]
		default:
			return eris.New("a check ID or --image is required")
		}

		c, err := worker.Dial(cfg.Temporal)
		if err != nil {
			return err
		}
		defer c.Close()

		runID, err := worker.Enqueue(ctx, c, cfg.Temporal.TaskQueue, checkID, int32(cfg.Resilience.MaxAttempts))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued check %s (workflow %s, run %s)\n", checkID, worker.WorkflowID(checkID), runID)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueImage, "image", "", "create a check for this image and queue it")
	enqueueCmd.Flags().StringVar(&enqueueTenant, "tenant", "default", "tenant that owns a created check")
	rootCmd.AddCommand(enqueueCmd)
}
