package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/output"
)

var diffCmd = &cobra.Command{
	Use:   "diff <before.yaml> <after.yaml>",
	Short: "Compare two snapshots node by node",
	Long: `Match nodes of two snapshots by window, class, id name and tree path and
report what was added, removed or changed.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	before, err := model.LoadSnapshot(args[0])
	if err != nil {
		return err
	}
	after, err := model.LoadSnapshot(args[1])
	if err != nil {
		return err
	}
	d := model.DiffByHash(model.Flatten(before), model.Flatten(after))
	return output.Fprint(cmd.OutOrStdout(), output.DiffResult{TS: time.Now().Unix(), Diff: d})
}
