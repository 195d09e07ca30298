package cli

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/kittclouds/chapterfacts/internal/store"
	"github.com/kittclouds/chapterfacts/pkg/config"
	"github.com/kittclouds/chapterfacts/pkg/fact"
	"github.com/kittclouds/chapterfacts/pkg/factstore"
	"github.com/kittclouds/chapterfacts/pkg/logger"
	"github.com/kittclouds/chapterfacts/pkg/verify"
	"github.com/kittclouds/chapterfacts/pkg/vocab"
)

// app is the loaded runtime of one command: vocabulary, persistence and the
// in-memory store built from it.
type app struct {
	cfg       *config.Config
	vocab     *vocab.Vocabulary
	persister factstore.Persister
	sqlite    *store.SQLiteStore
	store     *factstore.Store
	log       *zap.SugaredLogger
}

func (o *options) open() (*app, error) {
	a := &app{cfg: o.cfg, log: logger.Named("cli")}

	if o.cfg.Vocabulary.Path != "" {
		v, err := vocab.Load(o.cfg.Vocabulary.Path)
		if err != nil {
			return nil, err
		}
		a.vocab = v
	} else {
		a.vocab = vocab.Default()
	}

	switch o.cfg.Store.Backend {
	case config.BackendSQLite:
		s, err := store.NewSQLiteStoreWithDSN(o.cfg.Store.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "open sqlite store %s", o.cfg.Store.Path)
		}
		a.sqlite = s
		a.persister = s
	default:
		a.persister = factstore.NewJSONLFile(o.cfg.Store.Path)
	}

	reg := a.vocab.Registry()
	fs, err := factstore.Open(a.persister, factstore.WithReservedSubjects(reg.WorldID(), reg.UserID()))
	if err != nil {
		a.close()
		return nil, err
	}
	a.store = fs

	a.log.Debugw("store loaded",
		logger.FieldBackend, o.cfg.Store.Backend,
		logger.FieldPath, o.cfg.Store.Path,
		logger.FieldCount, fs.Len(),
	)
	return a, nil
}

func (a *app) save() error {
	if err := a.store.Save(a.persister); err != nil {
		return err
	}
	a.log.Infow("store saved",
		logger.FieldBackend, a.cfg.Store.Backend,
		logger.FieldPath, a.cfg.Store.Path,
		logger.FieldCount, a.store.Len(),
	)
	return nil
}

func (a *app) close() {
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.log.Warnw("close sqlite store", logger.FieldError, err)
		}
	}
}

// The read helpers below answer from the database when the backend is
// SQLite and from the loaded store otherwise.

func (a *app) get(id string) (*fact.Fact, error) {
	if a.sqlite != nil {
		return a.sqlite.GetFact(id)
	}
	return a.store.Get(id)
}

// timeline lists every version of key, oldest first.
func (a *app) timeline(key fact.Key) ([]*fact.Fact, error) {
	if a.sqlite == nil {
		return a.store.Timeline(key), nil
	}
	versions, err := a.sqlite.ListFactVersions(key)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(versions)-1; i < j; i, j = i+1, j-1 {
		versions[i], versions[j] = versions[j], versions[i]
	}
	return versions, nil
}

func (a *app) visibleAt(chapter int) ([]*fact.Fact, error) {
	if a.sqlite != nil {
		return a.sqlite.FactsAtChapter(chapter)
	}
	return a.store.QueryAtChapter(chapter), nil
}

func (a *app) count() (int, error) {
	if a.sqlite != nil {
		return a.sqlite.CountFacts()
	}
	return a.store.Len(), nil
}

// resolveIDs maps names to registry ids, lowercasing unknown names.
func (a *app) resolveIDs(names []string) []string {
	reg := a.vocab.Registry()
	ids := make([]string, len(names))
	for i, name := range names {
		if id, ok := reg.Resolve(name); ok {
			ids[i] = id
		} else {
			ids[i] = strings.ToLower(name)
		}
	}
	return ids
}

// verifyParams combines the configured lexicons with the registry's
// pseudo-entities and display names.
func (a *app) verifyParams() verify.Params {
	p := a.cfg.VerifyParams()
	reg := a.vocab.Registry()
	p.ExcludedSubjects = []string{reg.WorldID(), reg.UserID()}
	p.Aliases = make(map[string][]string)
	for _, e := range reg.MentionEntities() {
		p.Aliases[e.ID] = e.Aliases
	}
	return p
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode output")
}
