package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/kittclouds/chapterfacts/pkg/ingest"
	"github.com/kittclouds/chapterfacts/pkg/update"
)

func newIngestCommand(o *options) *cobra.Command {
	var journalPath string

	cmd := &cobra.Command{
		Use:   "ingest <candidates>",
		Short: "Ingest chapter-ordered candidate facts",
		Long: `Ingest reads candidate facts (JSONL or a JSON array), groups them by the
chapter they were observed in, validates them against the vocabulary and
resolves each one against the store. The store is saved when every
chapter has been applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batches, err := ingest.LoadCandidates(args[0])
			if err != nil {
				return err
			}

			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			resolver := update.NewResolver(a.store, o.cfg.UpdateParams())
			pipeline := ingest.NewPipeline(a.vocab, resolver, a.store)
			summary, runErr := pipeline.Run(ctx, batches)

			if journalPath != "" {
				if err := writeJournal(journalPath, resolver.Journal()); err != nil {
					return err
				}
			}
			if runErr != nil {
				// Nothing is saved from an interrupted or rejected run.
				return runErr
			}
			if err := a.save(); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "write the decision journal as JSONL to this file")
	return cmd
}

func writeJournal(path string, j *update.Journal) error {
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := j.WriteJSONL(fh); err != nil {
		fh.Close()
		return err
	}
	return errors.Wrapf(fh.Close(), "close %s", path)
}
