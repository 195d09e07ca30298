package cli

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/chapterfacts/pkg/fact"
)

func newTimelineCommand(o *options) *cobra.Command {
	var (
		subjects  []string
		predicate string
		object    string
	)

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show every version of one canonical fact",
		Long: `Timeline lists all versions, active or superseded, sharing the canonical
key built from --subjects, --predicate and --object, oldest first. Without
flags it lists the canonical keys in the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			if len(subjects) == 0 && predicate == "" {
				return writeJSON(cmd.OutOrStdout(), a.store.Keys())
			}

			versions, err := a.timeline(fact.KeyOf(a.resolveIDs(subjects), predicate, object))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), versions)
		},
	}

	cmd.Flags().StringSliceVar(&subjects, "subjects", nil, "subjects of the fact (names or ids)")
	cmd.Flags().StringVar(&predicate, "predicate", "", "predicate of the fact")
	cmd.Flags().StringVar(&object, "object", "", "object of the fact")
	return cmd
}

func newChainCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <fact-id>",
		Short: "Show the supersession chain ending at a fact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			chain, err := a.store.EvolutionChain(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), chain)
		},
	}
}

func newShowCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <fact-id>",
		Short: "Show one stored fact version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.get(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), f)
		},
	}
}
