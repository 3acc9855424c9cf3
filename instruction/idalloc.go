package instruction

import (
	"math/rand"
	"strconv"

	"github.com/nodius/graphsync/errors"
)

// maxCollisions bounds how many consecutive random candidates Next will
// try before giving up, per the used-ID-set exhaustion rule.
const maxCollisions = 10000

// IDAllocator hands out base-36 localKeys unique within one graph, never
// reusing a key even after its node/edge is deleted.
type IDAllocator struct {
	used    map[string]struct{}
	counter int64
}

// NewIDAllocatorFromUsed builds an allocator seeded with every localKey
// already assigned in the graph (nodes, edges, and any "identifier" field
// recursively nested in node data) plus the highest base-36-parseable value
// among them; Next starts from counter+1.
func NewIDAllocatorFromUsed(existing []string) *IDAllocator {
	a := &IDAllocator{used: make(map[string]struct{}, len(existing))}
	for _, id := range existing {
		a.Mark(id)
	}
	return a
}

// Mark records id as used and advances the counter past it if id parses as
// base-36.
func (a *IDAllocator) Mark(id string) {
	a.used[id] = struct{}{}
	if n, err := strconv.ParseInt(id, 36, 64); err == nil && n >= a.counter {
		a.counter = n + 1
	}
}

// Contains reports whether id has ever been allocated in this graph.
func (a *IDAllocator) Contains(id string) bool {
	_, ok := a.used[id]
	return ok
}

// Next returns the counter-based candidate, encoded base-36, and marks it
// used. The counter is monotonic so a counter-based candidate can only
// collide with a used-ID set populated out of band (e.g. by a concurrent
// allocator on another instance of the same graph); Next falls back to
// randomized probing in that case.
func (a *IDAllocator) Next() (string, error) {
	candidate := strconv.FormatInt(a.counter, 36)
	a.counter++
	if !a.Contains(candidate) {
		a.used[candidate] = struct{}{}
		return candidate, nil
	}

	for tries := 0; tries < maxCollisions; tries++ {
		candidate := strconv.FormatInt(a.counter+rand.Int63n(1<<32), 36)
		if !a.Contains(candidate) {
			a.used[candidate] = struct{}{}
			return candidate, nil
		}
	}
	return "", errors.ErrIDExhausted
}

// ScanIdentifiers walks a node's data tree and collects every string value
// found under an "identifier" key, recursively through nested maps and
// slices, for used-ID-set population at load time.
func ScanIdentifiers(data any, out *[]string) {
	switch v := data.(type) {
	case map[string]any:
		if id, ok := v["identifier"].(string); ok {
			*out = append(*out, id)
		}
		for _, child := range v {
			ScanIdentifiers(child, out)
		}
	case []any:
		for _, child := range v {
			ScanIdentifiers(child, out)
		}
	}
}

// AssignFreshIdentifiers recursively replaces every "identifier" field in a
// subtree with a fresh id from a, returning the rewritten subtree. Used
// when applyUniqIdentifier is set on an instruction that inserts a subtree.
func AssignFreshIdentifiers(data any, a *IDAllocator) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		newMap := cloneMap(v)
		if _, ok := newMap["identifier"]; ok {
			id, err := a.Next()
			if err != nil {
				return nil, err
			}
			newMap["identifier"] = id
		}
		for k, child := range newMap {
			if k == "identifier" {
				continue
			}
			rewritten, err := AssignFreshIdentifiers(child, a)
			if err != nil {
				return nil, err
			}
			newMap[k] = rewritten
		}
		return newMap, nil
	case []any:
		newSlice := cloneSlice(v)
		for idx, child := range newSlice {
			rewritten, err := AssignFreshIdentifiers(child, a)
			if err != nil {
				return nil, err
			}
			newSlice[idx] = rewritten
		}
		return newSlice, nil
	default:
		return data, nil
	}
}
