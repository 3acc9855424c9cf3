package session

import "github.com/nodius/graphsync/errors"

// errToResponse maps a validation-class error (spec.md §7's "Validation
// error" row) to the wire-level {ok:false, message} reply. Protocol
// violations and ownership misses are handled separately by their callers
// since they have different shapes (socket close, redirect) rather than a
// plain error value.
func errToResponse(id string, err error) map[string]any {
	return response(id, false, err.Error())
}

// isFatalForGraph reports whether err is the ID-exhaustion condition,
// spec.md §7's one "fatal for that graph operation" disposition.
func isFatalForGraph(err error) bool {
	return errors.Is(err, errors.ErrIDExhausted)
}
