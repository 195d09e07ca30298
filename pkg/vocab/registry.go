package vocab

import (
	"sort"
	"strings"

	"github.com/kittclouds/chapterfacts/pkg/lexicon"
)

// Registry maps character display names to stable ids and names the two
// pseudo-entities used as subjects of world and user-directed facts.
type Registry struct {
	worldID string
	userID  string

	// display name -> id, as configured
	aliases map[string]string
	// lowercased display name or id -> id
	lookup map[string]string
	// id -> display names, sorted
	byID map[string][]string
}

// NewRegistry builds a registry. aliases maps display names to ids.
func NewRegistry(worldID, userID string, aliases map[string]string) *Registry {
	r := &Registry{worldID: worldID, userID: userID}
	r.setAliases(aliases)
	return r
}

func (r *Registry) setAliases(aliases map[string]string) {
	r.aliases = make(map[string]string, len(aliases))
	r.lookup = make(map[string]string, len(aliases)*2)
	r.byID = make(map[string][]string)
	for name, id := range aliases {
		r.aliases[name] = id
		r.lookup[strings.ToLower(name)] = id
		r.lookup[strings.ToLower(id)] = id
		r.byID[id] = append(r.byID[id], name)
	}
	for id := range r.byID {
		sort.Strings(r.byID[id])
	}
}

// WorldID is the sole subject of world facts.
func (r *Registry) WorldID() string { return r.worldID }

// UserID is the pseudo-entity on the receiving end of character-to-user facts.
func (r *Registry) UserID() string { return r.userID }

// Resolve maps an id or display name to a registered id. The world and
// user ids resolve to themselves.
func (r *Registry) Resolve(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case strings.ToLower(r.worldID):
		return r.worldID, true
	case strings.ToLower(r.userID):
		return r.userID, true
	}
	id, ok := r.lookup[key]
	return id, ok
}

// IsCharacter reports whether id is a registered character (not world, not user).
func (r *Registry) IsCharacter(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Characters returns every registered character id, sorted.
func (r *Registry) Characters() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Aliases returns the display names registered for id.
func (r *Registry) Aliases(id string) []string {
	return append([]string(nil), r.byID[id]...)
}

// MentionEntities returns the registry in the shape the mention dictionary
// compiles from.
func (r *Registry) MentionEntities() []lexicon.Entity {
	ids := r.Characters()
	out := make([]lexicon.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, lexicon.Entity{ID: id, Aliases: r.Aliases(id)})
	}
	return out
}
