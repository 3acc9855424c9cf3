// Package errors provides error handling for the collab backbone.
//
// It re-exports github.com/cockroachdb/errors, giving every package stack
// traces, wrapping, and PII-safe hints for free, plus the sentinel errors
// used by the taxonomy in the session/cluster/instruction packages.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	GetAllHints   = crdb.GetAllHints
	GetAllDetails = crdb.GetAllDetails
)

// Sentinel errors for the taxonomy in spec.md §7. Callers compare with Is();
// handlers translate these into the wire-level {ok:false, message} or socket
// closure per the disposition table.
var (
	// ErrNotFound is returned when an instruction, batch op, or catch-up
	// request targets a node/edge/sheet/instance that doesn't exist.
	ErrNotFound = New("not found")

	// ErrOwnedElsewhere is returned by the cluster coordinator when a
	// register targets an instance owned by another peer.
	ErrOwnedElsewhere = New("instance owned elsewhere")

	// ErrBatchTooLarge is returned (and the socket closed) when a batch of
	// instructions exceeds the 20-instruction cap.
	ErrBatchTooLarge = New("instruction batch too large")

	// ErrDuplicateKey is returned when a batchCreate references a localKey
	// that already exists in the graph or is duplicated within the batch.
	ErrDuplicateKey = New("duplicate key")

	// ErrIDExhausted is returned when 10,000 consecutive ID candidates
	// collide with the used-ID set.
	ErrIDExhausted = New("id space exhausted")

	// ErrTimeout is returned by a direct cluster send that received no
	// response within its deadline.
	ErrTimeout = New("direct send timed out")

	// ErrUnknownPeer is returned by a direct cluster send addressed to a
	// peer id not in the connected set.
	ErrUnknownPeer = New("unknown peer")

	// ErrInvalidInstruction is returned by instruction.Validate for a
	// malformed path, unsupported operator, or negative index, and by
	// instruction.Apply when a path meets a value of the wrong type.
	ErrInvalidInstruction = New("invalid instruction")

	// ErrUnauthorized is returned when a protected operation is attempted
	// without a valid auth token.
	ErrUnauthorized = New("unauthorized")

	// ErrRateLimited is returned when an outbound cluster send (broadcast or
	// direct) is dropped by the coordinator's rate limiter.
	ErrRateLimited = New("rate limited")
)
