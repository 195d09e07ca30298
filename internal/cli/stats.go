package cli

import (
	"github.com/spf13/cobra"

	"github.com/kittclouds/chapterfacts/pkg/factstore"
)

type statsOutput struct {
	Backend  string             `json:"backend"`
	Total    int                `json:"total_memories"`
	Chapters map[int]int        `json:"chapters"`
	At       *factstore.Summary `json:"at_chapter,omitempty"`
	SQLite   string             `json:"sqlite_version,omitempty"`
	Vec      string             `json:"vec_version,omitempty"`
}

func newStatsCommand(o *options) *cobra.Command {
	var chapter int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the store",
		Long: `Stats prints the number of records per originating chapter and, with
--chapter, a summary of what is visible at that chapter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			total, err := a.count()
			if err != nil {
				return err
			}
			out := statsOutput{
				Backend:  o.cfg.Store.Backend,
				Total:    total,
				Chapters: a.store.ChapterCounts(),
			}
			if chapter > 0 {
				summary := a.store.SummaryAt(chapter)
				out.At = &summary
			}
			if a.sqlite != nil {
				out.SQLite, out.Vec, err = a.sqlite.Versions()
				if err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVarP(&chapter, "chapter", "c", 0, "also summarize the facts visible at this chapter")
	return cmd
}
