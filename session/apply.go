package session

import (
	"encoding/json"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/instruction"
	"github.com/nodius/graphsync/store"
)

// toMap round-trips v through JSON into a generic tree the instruction
// engine can operate on; fromMap reverses it. Every Node/Edge field has a
// json tag, so a path like "data.label" or "position.x" addresses it
// directly — this is what spec.md §4.2.2 means by "an operation over its
// JSON tree".
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding instruction target")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "decoding instruction target")
	}
	return m, nil
}

func fromMap[T any](m map[string]any, out *T) error {
	b, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding mutated target")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return errors.Wrap(err, "decoding mutated target")
	}
	return nil
}

func targetGuard(targetedIdentifier string) instruction.Guard {
	if targetedIdentifier == "" {
		return nil
	}
	return func(path string, current any) error {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if id, ok := m["identifier"].(string); ok && id != targetedIdentifier {
			return errors.Wrapf(errors.ErrInvalidInstruction, "targeted identifier %q no longer matches %q at %q", targetedIdentifier, id, path)
		}
		return nil
	}
}

type workingEntity struct {
	kind    string // "node" or "edge"
	sheetID string
	key     string
	obj     map[string]any
}

// applyResult is the outcome of attempting a batch of instructions.
type applyResult struct {
	affectedSheets map[string]struct{}
	validationErr  error
}

// applyInstructionBatch runs spec.md §4.2.2 steps 2-7 against mi and marks
// the affected sheets dirty; it does not append history (the caller does,
// via recordHistory). mi must already be running on mi's own goroutine
// (called from inside a submit closure). Rate-cap (step 1) is checked by the caller before
// submitting so an oversize batch never reaches the instance goroutine.
func applyInstructionBatch(mi *ManagedInstance, envs []InstructionEnvelope) applyResult {
	working := make(map[string]*workingEntity)

	getTarget := func(env InstructionEnvelope) (*workingEntity, error) {
		isEdge := env.EdgeID != ""
		key := env.SheetID + "|"
		if isEdge {
			key += "edge|" + env.EdgeID
		} else {
			key += "node|" + env.NodeID
		}
		if w, ok := working[key]; ok {
			return w, nil
		}

		s := mi.sheet(env.SheetID)
		var obj map[string]any
		var err error
		if isEdge {
			e, ok := s.edges[env.EdgeID]
			if !ok {
				return nil, errors.Wrapf(errors.ErrNotFound, "edge %q on sheet %q", env.EdgeID, env.SheetID)
			}
			obj, err = toMap(e)
		} else {
			n, ok := s.nodes[env.NodeID]
			if !ok {
				return nil, errors.Wrapf(errors.ErrNotFound, "node %q on sheet %q", env.NodeID, env.SheetID)
			}
			obj, err = toMap(n)
		}
		if err != nil {
			return nil, err
		}

		w := &workingEntity{sheetID: env.SheetID, obj: obj}
		if isEdge {
			w.kind, w.key = "edge", env.EdgeID
		} else {
			w.kind, w.key = "node", env.NodeID
		}
		working[key] = w
		return w, nil
	}

	for idx := range envs {
		env := &envs[idx]

		if err := instruction.Validate(env.I); err != nil {
			return applyResult{validationErr: err}
		}

		w, err := getTarget(*env)
		if err != nil {
			return applyResult{validationErr: err}
		}

		if env.ApplyUniqIdentifier && env.I.Value != nil {
			rewritten, err := instruction.AssignFreshIdentifiers(env.I.Value, mi.idAlloc)
			if err != nil {
				return applyResult{validationErr: err}
			}
			env.I.Value = rewritten
		}

		// Inverse must be computed from the pre-mutation object.
		if _, err := instruction.Inverse(w.obj, env.I); err != nil {
			return applyResult{validationErr: err}
		}

		newObj, err := instruction.Apply(w.obj, env.I, targetGuard(env.TargetedIdentifier))
		if err != nil {
			return applyResult{validationErr: err}
		}
		w.obj = newObj
	}

	// All instructions succeeded against working copies: commit.
	affected := make(map[string]struct{})
	for _, w := range working {
		s := mi.sheet(w.sheetID)
		affected[w.sheetID] = struct{}{}
		if w.kind == "edge" {
			old := s.edges[w.key]
			var e store.Edge
			if err := fromMap(w.obj, &e); err != nil {
				return applyResult{validationErr: err}
			}
			if old != nil {
				s.deindexEdge(old)
			}
			s.edges[w.key] = &e
			s.indexEdge(&e)
		} else {
			var n store.Node
			if err := fromMap(w.obj, &n); err != nil {
				return applyResult{validationErr: err}
			}
			s.nodes[w.key] = &n
		}
		s.dirty = true
	}

	return applyResult{affectedSheets: affected}
}

// applyNodeConfigBatch applies a batch against a node-config instance's
// Content tree (the config's single editable JSON document).
func applyNodeConfigBatch(mi *ManagedInstance, envs []InstructionEnvelope) error {
	obj, err := toMap(mi.nodeConfig.Content)
	if err != nil {
		return err
	}
	for idx := range envs {
		env := &envs[idx]
		if err := instruction.Validate(env.I); err != nil {
			return err
		}
		if env.ApplyUniqIdentifier && env.I.Value != nil {
			rewritten, err := instruction.AssignFreshIdentifiers(env.I.Value, mi.idAlloc)
			if err != nil {
				return err
			}
			env.I.Value = rewritten
		}
		if _, err := instruction.Inverse(obj, env.I); err != nil {
			return err
		}
		newObj, err := instruction.Apply(obj, env.I, targetGuard(env.TargetedIdentifier))
		if err != nil {
			return err
		}
		obj = newObj
	}
	var content map[string]any
	if err := fromMap(obj, &content); err != nil {
		return err
	}
	mi.nodeConfig.Content = content
	return nil
}
