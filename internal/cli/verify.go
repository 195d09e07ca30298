package cli

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/kittclouds/chapterfacts/pkg/verify"
)

func newVerifyCommand(o *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Scan the store for temporal and knowledge-boundary violations",
		Long: `Verify reports time overlaps, world facts that leak the future, private
knowledge referenced before it exists and one-sided relationships. The
report is JSON; an empty report means the store is consistent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			report, err := verify.New(a.store, a.verifyParams()).RunAll()
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if strict && !report.Clean() {
				return errors.Newf("verification found %d conflicts", report.Summary.TotalConflicts)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any violation is found")
	return cmd
}
