package cli

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/rank"
)

func newQueryCommand(o *options) *cobra.Command {
	var (
		chapter   int
		k         int
		character string
		memType   string
		visible   bool
	)

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Rank the facts visible at a chapter",
		Long: `Query returns the facts visible at --chapter. With query text they are
ranked by relevance; with --character or --type they are filtered and
ordered by confidence instead. --visible lists every visible fact in
chapter order without ranking.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chapter < 1 {
				return errors.New("--chapter must be at least 1")
			}

			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			if visible {
				facts, err := a.visibleAt(chapter)
				if err != nil {
					return err
				}
				if k > 0 && len(facts) > k {
					facts = facts[:k]
				}
				return writeJSON(cmd.OutOrStdout(), facts)
			}

			ranker, err := rank.New(a.store, o.cfg.RankParams())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case character != "":
				id, ok := a.vocab.Registry().Resolve(character)
				if !ok {
					id = strings.ToLower(character)
				}
				return writeJSON(out, ranker.ByCharacter(id, chapter, k))
			case memType != "":
				t, ok := fact.ParseMemType(memType)
				if !ok {
					return errors.Newf("unknown memory type %q", memType)
				}
				return writeJSON(out, ranker.ByType(t, chapter, k))
			default:
				return writeJSON(out, ranker.Rank(strings.Join(args, " "), chapter, k))
			}
		},
	}

	cmd.Flags().IntVarP(&chapter, "chapter", "c", 0, "chapter to query at (required)")
	cmd.Flags().IntVarP(&k, "limit", "k", 10, "maximum results, 0 for all")
	cmd.Flags().StringVar(&character, "character", "", "only facts involving this character")
	cmd.Flags().StringVar(&memType, "type", "", "only facts of this memory type (WORLD, INTERCHARACTER, CHARACTER_TO_USER)")
	cmd.Flags().BoolVar(&visible, "visible", false, "list every visible fact in chapter order")
	_ = cmd.MarkFlagRequired("chapter")
	return cmd
}
