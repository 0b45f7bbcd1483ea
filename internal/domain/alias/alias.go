// Package alias models alias bindings and the ordered actions that mutate them.
package alias

import "sort"

// ActionType is the kind of alias mutation.
type ActionType string

const (
	// ActionAdd binds Alias to Index.
	ActionAdd ActionType = "add"
	// ActionRemove unbinds Alias from Index.
	ActionRemove ActionType = "remove"
)

// Action is one step of an atomic alias update. Order within a request matters.
type Action struct {
	Type  ActionType `json:"type"`
	Index string     `json:"index"`
	Alias string     `json:"alias"`
}

// Add returns an add action.
func Add(index, alias string) Action {
	return Action{Type: ActionAdd, Index: index, Alias: alias}
}

// Remove returns a remove action.
func Remove(index, alias string) Action {
	return Action{Type: ActionRemove, Index: index, Alias: alias}
}

// Bindings maps a physical index to the aliases through which a name reached it.
type Bindings map[string][]string

// Indexes returns the bound physical index names, sorted.
func (b Bindings) Indexes() []string {
	out := make([]string, 0, len(b))
	for idx := range b {
		out = append(out, idx)
	}
	sort.Strings(out)
	return out
}
