package session

import "sort"

// missingSince returns every history entry recorded after fromMillis
// (exclusive), via binary search since entries are appended in
// non-decreasing timestamp order (spec.md §8 invariant 6).
func missingSince(entries []historyEntry, fromMillis int64) []historyEntry {
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].Timestamp.UnixMilli() > fromMillis
	})
	return entries[idx:]
}

// catchUpMessages gathers missingMessages across every sheet of a graph
// instance (registerUserOnGraph catch-up is scoped to the sheet the user
// is registering on; a node-config instance has a single implicit sheet).
func catchUpMessages(mi *ManagedInstance, sheetID string, fromMillis int64) []json_ {
	s, ok := mi.sheets[sheetID]
	if !ok {
		return nil
	}
	missing := missingSince(s.history, fromMillis)
	out := make([]json_, 0, len(missing))
	for _, e := range missing {
		out = append(out, json_(e.Message))
	}
	return out
}

// json_ is a pre-serialized JSON value that marshals verbatim, used so
// catch-up replays the exact bytes originally fanned out rather than
// re-encoding a reconstructed Go value.
type json_ []byte

func (j json_) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}
