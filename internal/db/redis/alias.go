package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/indexstager/internal/db"
)

// AliasBindings resolves name through FT.INFO. RediSearch aliases point at a
// single index, so the result holds at most one entry. FT.INFO does not list
// the aliases of a concrete index, which therefore reports no bindings.
func (s *Store) AliasBindings(ctx context.Context, name string) (map[string][]string, error) {
	info, err := s.info(ctx, name)
	if err != nil {
		return nil, err
	}
	resolved := infoString(info, "index_name")
	if resolved == "" || resolved == name {
		return map[string][]string{}, nil
	}
	return map[string][]string{resolved: {name}}, nil
}

// UpdateAliases queues the actions inside MULTI/EXEC so no client observes a
// partially applied swap. An add maps to FT.ALIASUPDATE (create or repoint),
// a remove to FT.ALIASDEL; the index of a remove is implied by the alias.
// EXEC does not roll back, so a remove whose alias is added again later in
// the request is folded into that FT.ALIASUPDATE and the alias never goes
// unbound.
func (s *Store) UpdateAliases(ctx context.Context, actions []db.AliasAction) error {
	if len(actions) == 0 {
		return nil
	}
	sent, err := foldAliasActions(actions)
	if err != nil {
		return err
	}

	cmds := make([]rueidis.Completed, 0, len(sent)+2)
	cmds = append(cmds, s.b().Multi().Build())
	for _, a := range sent {
		if a.Type == db.AliasAdd {
			cmds = append(cmds, s.b().Arbitrary("FT.ALIASUPDATE").Args(a.Alias, a.Index).Build())
		} else {
			cmds = append(cmds, s.b().Arbitrary("FT.ALIASDEL").Args(a.Alias).Build())
		}
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.doMulti(ctx, cmds...)
	for i, r := range results[:len(results)-1] {
		if err := r.Error(); err != nil {
			return &db.Error{Op: opForCommand(sent, i), Err: err}
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return &db.Error{Op: db.OpExec, Err: errors.New("transaction aborted")}
		}
		return &db.Error{Op: db.OpExec, Err: err}
	}
	for i := range replies {
		if i >= len(sent) {
			break
		}
		if err := replies[i].Error(); err != nil {
			if isRedisErr(err, "alias does not exist") || isUnknownIndex(err) {
				return fmt.Errorf("%s %s: %w", sent[i].Type, sent[i].Alias, db.ErrAliasNotFound)
			}
			return &db.Error{Op: opForAction(sent[i]), Err: err}
		}
	}
	return nil
}

// foldAliasActions drops every remove whose alias is added again later in
// actions. A RediSearch alias names one index, so the later FT.ALIASUPDATE
// already repoints it.
func foldAliasActions(actions []db.AliasAction) ([]db.AliasAction, error) {
	readded := make(map[string]bool, len(actions))
	out := make([]db.AliasAction, 0, len(actions))
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		switch a.Type {
		case db.AliasAdd:
			readded[a.Alias] = true
			out = append(out, a)
		case db.AliasRemove:
			if !readded[a.Alias] {
				out = append(out, a)
			}
		default:
			return nil, fmt.Errorf("unknown alias action %q", a.Type)
		}
	}
	slices.Reverse(out)
	return out, nil
}

// opForCommand maps a position in the MULTI pipeline (0 = MULTI) to its op.
func opForCommand(actions []db.AliasAction, i int) string {
	if i == 0 || i > len(actions) {
		return db.OpExec
	}
	return opForAction(actions[i-1])
}

func opForAction(a db.AliasAction) string {
	if a.Type == db.AliasRemove {
		return db.OpAliasDel
	}
	return db.OpAliasUpdate
}
