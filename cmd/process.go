package main

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/model"
)

var (
	processTenant  string
	processCheckID string
)

var processCmd = &cobra.Command{
	Use:   "process [image]",
	Short: "Process a single check image and print the result",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if processCheckID == "" && len(args) == 0 {
			return eris.New("an image path or --check is required")
		}

		env, err := initPipeline(ctx, cfg, "process", nil)
		if err != nil {
			return err
		}
		defer env.Close()

		checkID := processCheckID
		if checkID == "" {
			check, err := env.Store.CreateCheck(ctx, newCheck(processTenant, args[0]))
			if err != nil {
				return eris.Wrap(err, "create check")
			}
			checkID = check.ID
			zap.L().Info("check created", zap.String("check_id", checkID), zap.String("file", args[0]))
		}

		result, err := env.Pipeline.Run(ctx, checkID)
		if err != nil {
			return eris.Wrapf(err, "process check %s", checkID)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// newCheck describes an uploaded image as a new check record.
func newCheck(tenantID, source string) model.Check {
	return model.Check{
		TenantID: tenantID,
		FileURL:  source,
		FileType: strings.ToLower(strings.TrimPrefix(filepath.Ext(source), ".")),
		Status:   model.CheckStatusUploaded,
	}
}

func init() {
	processCmd.Flags().StringVar(&processTenant, "tenant", "default", "tenant that owns the check")
	processCmd.Flags().StringVar(&processCheckID, "check", "", "reprocess an existing check by ID")
	rootCmd.AddCommand(processCmd)
}
