package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, obj map[string]any, i Instruction) {
	t.Helper()
	inv, err := Inverse(obj, i)
	require.NoError(t, err)

	applied, err := Apply(obj, i, nil)
	require.NoError(t, err)

	restored, err := Apply(applied, inv, nil)
	require.NoError(t, err)

	assert.Equal(t, obj, restored)
}

func TestSetRoundTrip(t *testing.T) {
	obj := map[string]any{"position": map[string]any{"x": 1.0, "y": 2.0}}
	roundTrip(t, obj, Instruction{Op: Set, Path: "position.x", Value: 500.0})
}

func TestSetNewKeyRoundTrip(t *testing.T) {
	obj := map[string]any{"data": map[string]any{}}
	roundTrip(t, obj, Instruction{Op: Set, Path: "data.label", Value: "hello"})
}

func TestDeleteRoundTrip(t *testing.T) {
	obj := map[string]any{"data": map[string]any{"label": "hello"}}
	roundTrip(t, obj, Instruction{Op: Delete, Path: "data.label"})
}

func TestInsertArrayRoundTrip(t *testing.T) {
	obj := map[string]any{"data": map[string]any{"items": []any{"a", "b"}}}
	roundTrip(t, obj, Instruction{Op: InsertArray, Path: "data.items", Index: 1, Value: "x"})
}

func TestRemoveArrayRoundTrip(t *testing.T) {
	obj := map[string]any{"data": map[string]any{"items": []any{"a", "b", "c"}}}
	roundTrip(t, obj, Instruction{Op: RemoveArray, Path: "data.items", Index: 1})
}

func TestMoveArrayRoundTrip(t *testing.T) {
	obj := map[string]any{"data": map[string]any{"items": []any{"a", "b", "c", "d"}}}
	roundTrip(t, obj, Instruction{Op: MoveArray, Path: "data.items", From: 0, To: 2})
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	obj := map[string]any{"position": map[string]any{"x": 1.0}}
	_, err := Apply(obj, Instruction{Op: Set, Path: "position.x", Value: 99.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, obj["position"].(map[string]any)["x"])
}

func TestApplyMissingPathFails(t *testing.T) {
	obj := map[string]any{"data": map[string]any{}}
	_, err := Apply(obj, Instruction{Op: Set, Path: "missing.field.x", Value: 1}, nil)
	assert.Error(t, err)
}

func TestGuardRejectsInstruction(t *testing.T) {
	obj := map[string]any{"data": map[string]any{"locked": true}}
	guard := func(path string, current any) error {
		return assert.AnError
	}
	_, err := Apply(obj, Instruction{Op: Set, Path: "data.locked", Value: false}, guard)
	assert.Error(t, err)
}

func TestValidateRejectsUnknownOperator(t *testing.T) {
	err := Validate(Instruction{Op: "BOGUS", Path: "a.b"})
	assert.Error(t, err)
}
