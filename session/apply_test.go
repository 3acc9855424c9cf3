package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodius/graphsync/instruction"
	"github.com/nodius/graphsync/store"
)

func TestApplyInstructionBatchCommitsOnlyWhenAllSucceed(t *testing.T) {
	mi := newManagedInstance("g1")
	defer mi.Close()
	mi.idAlloc = instruction.NewIDAllocatorFromUsed(nil)

	mi.submit(func() {
		s := mi.sheet("s1")
		s.nodes["a"] = &store.Node{LocalKey: "a", GraphKey: "g1", SheetID: "s1", Process: "draft"}
	})

	var result applyResult
	mi.submit(func() {
		result = applyInstructionBatch(mi, []InstructionEnvelope{
			{SheetID: "s1", NodeID: "a", I: instruction.Instruction{Op: instruction.Set, Path: "process", Value: "final"}},
		})
	})

	require.NoError(t, result.validationErr)
	assert.Contains(t, result.affectedSheets, "s1")

	s := mi.sheet("s1")
	assert.Equal(t, "final", s.nodes["a"].Process)
	assert.True(t, s.dirty)
}

func TestApplyInstructionBatchRollsBackOnLaterFailure(t *testing.T) {
	mi := newManagedInstance("g1")
	defer mi.Close()
	mi.idAlloc = instruction.NewIDAllocatorFromUsed(nil)

	mi.submit(func() {
		s := mi.sheet("s1")
		s.nodes["a"] = &store.Node{LocalKey: "a", GraphKey: "g1", SheetID: "s1", Process: "draft"}
	})

	var result applyResult
	mi.submit(func() {
		result = applyInstructionBatch(mi, []InstructionEnvelope{
			{SheetID: "s1", NodeID: "a", I: instruction.Instruction{Op: instruction.Set, Path: "process", Value: "final"}},
			// missing-key edge lookup fails, so the whole batch (including
			// the successful SET above) must leave the node untouched.
			{SheetID: "s1", EdgeID: "nope", I: instruction.Instruction{Op: instruction.Set, Path: "label", Value: "x"}},
		})
	})

	require.Error(t, result.validationErr)
	s := mi.sheet("s1")
	assert.Equal(t, "draft", s.nodes["a"].Process, "a failed instruction later in the batch must not leave earlier working-copy edits committed")
	assert.False(t, s.dirty)
}

func TestApplyInstructionBatchTargetGuardRejectsStaleTarget(t *testing.T) {
	mi := newManagedInstance("g1")
	defer mi.Close()
	mi.idAlloc = instruction.NewIDAllocatorFromUsed(nil)

	mi.submit(func() {
		s := mi.sheet("s1")
		s.nodes["a"] = &store.Node{LocalKey: "a", GraphKey: "g1", SheetID: "s1", Data: map[string]any{"identifier": "id1"}}
	})

	var result applyResult
	mi.submit(func() {
		result = applyInstructionBatch(mi, []InstructionEnvelope{
			{SheetID: "s1", NodeID: "a", TargetedIdentifier: "wrong-id", I: instruction.Instruction{Op: instruction.Set, Path: "data", Value: map[string]any{"identifier": "id1", "label": "x"}}},
		})
	})

	assert.Error(t, result.validationErr)
}

func TestApplyNodeConfigBatchMutatesContentOnly(t *testing.T) {
	mi := newManagedInstance("nodeconfig:cfg1")
	defer mi.Close()
	mi.IsNodeConfig = true
	mi.idAlloc = instruction.NewIDAllocatorFromUsed(nil)
	mi.nodeConfig = &store.NodeConfig{
		Key:      "cfg1",
		Content:  map[string]any{"label": "old"},
		Template: map[string]any{"label": "template-unchanged"},
	}

	var err error
	mi.submit(func() {
		err = applyNodeConfigBatch(mi, []InstructionEnvelope{
			{I: instruction.Instruction{Op: instruction.Set, Path: "label", Value: "new"}},
		})
	})

	require.NoError(t, err)
	assert.Equal(t, "new", mi.nodeConfig.Content["label"])
	assert.Equal(t, "template-unchanged", mi.nodeConfig.Template["label"])
}
