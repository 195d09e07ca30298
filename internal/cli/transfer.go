package cli

import (
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
)

func newExportCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write every stored fact as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			if a.sqlite != nil {
				data, err := a.sqlite.Export()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return errors.Wrap(err, "write export")
			}
			return writeJSON(cmd.OutOrStdout(), a.store.All())
		},
	}
}

func newImportCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <export.json>",
		Short: "Replace the store with an exported JSON array",
		Long: `Import replaces the configured store with the facts of an export. The
records must form a consistent history; nothing is written otherwise.
Use it with --backend to move a store between JSONL and SQLite.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "read %s", args[0])
			}
			var facts []*fact.Fact
			if err := json.Unmarshal(data, &facts); err != nil {
				return &fact.MalformedRecordError{Field: args[0], Reason: err.Error()}
			}

			a, err := o.open()
			if err != nil {
				return err
			}
			defer a.close()

			reg := a.vocab.Registry()
			imported, err := factstore.Open(slicePersister(facts), factstore.WithReservedSubjects(reg.WorldID(), reg.UserID()))
			if err != nil {
				return err
			}
			if a.sqlite != nil {
				if err := a.sqlite.Import(data); err != nil {
					return err
				}
			} else {
				a.store = imported
				if err := a.save(); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), map[string]int{"imported": imported.Len()})
		},
	}
}

// slicePersister loads a fixed set of facts.
type slicePersister []*fact.Fact

func (s slicePersister) LoadFacts() ([]*fact.Fact, error) { return s, nil }

func (s slicePersister) SaveFacts([]*fact.Fact) error {
	return errors.New("read-only fact set")
}
