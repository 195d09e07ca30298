package cli

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/chapterfacts/pkg/eval"
	"github.com/kittclouds/chapterfacts/pkg/rank"
)

func newEvalCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Measure the store against gold data",
	}
	cmd.AddCommand(newEvalCoverageCommand(o), newEvalRetrievalCommand(o))
	return cmd
}

// evaluator opens the store read-only and builds an evaluator over it. The
// caller closes the returned app.
func (o *options) evaluator() (*app, *eval.Evaluator, error) {
	a, err := o.open()
	if err != nil {
		return nil, nil, err
	}
	ranker, err := rank.New(a.store, o.cfg.RankParams())
	if err != nil {
		a.close()
		return nil, nil, err
	}
	return a, eval.New(a.store, ranker, o.cfg.EvalParams()), nil
}

func newEvalCoverageCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "coverage <keyfacts.jsonl>",
		Short: "Check which gold key facts the store holds",
		Long: `Coverage reads one {"chapter", "facts"} object per line and checks every
gold fact against the facts visible at that chapter: by canonical key
first, then by text similarity above eval.coverage_threshold.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyFacts, err := eval.LoadKeyFacts(args[0])
			if err != nil {
				return err
			}

			a, e, err := o.evaluator()
			if err != nil {
				return err
			}
			defer a.close()

			for i := range keyFacts {
				for j := range keyFacts[i].Facts {
					g := &keyFacts[i].Facts[j]
					g.Subjects = a.resolveIDs(g.Subjects)
				}
			}
			return writeJSON(cmd.OutOrStdout(), e.Coverage(keyFacts))
		},
	}
}

func newEvalRetrievalCommand(o *options) *cobra.Command {
	var goldPath string

	cmd := &cobra.Command{
		Use:   "retrieval <queries.jsonl>",
		Short: "Score ranked retrieval against gold memories",
		Long: `Retrieval ranks every query in the file at its chapter and reports
precision, recall and MRR of the top k against the gold ids it lists.
--gold maps gold ids to canonical facts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := eval.LoadQueries(args[0])
			if err != nil {
				return err
			}
			gold, err := eval.LoadGoldMemories(goldPath)
			if err != nil {
				return err
			}

			a, e, err := o.evaluator()
			if err != nil {
				return err
			}
			defer a.close()

			for i := range gold {
				gold[i].Subjects = a.resolveIDs(gold[i].Subjects)
			}
			return writeJSON(cmd.OutOrStdout(), e.Retrieval(gold, queries))
		},
	}

	cmd.Flags().StringVar(&goldPath, "gold", "", "JSONL file of gold memories (required)")
	_ = cmd.MarkFlagRequired("gold")
	return cmd
}
