package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAllocatorNeverReusesDeleted(t *testing.T) {
	a := NewIDAllocatorFromUsed([]string{"a", "b", "c"})
	id, err := a.Next()
	require.NoError(t, err)
	assert.False(t, id == "a" || id == "b" || id == "c")
}

func TestIDAllocatorCounterStartsPastMax(t *testing.T) {
	a := NewIDAllocatorFromUsed([]string{"10", "z"}) // base36: 10->36, z->35
	id, err := a.Next()
	require.NoError(t, err)
	assert.NotEqual(t, "10", id)
	assert.NotEqual(t, "z", id)
}

func TestScanIdentifiersRecursesIntoNestedData(t *testing.T) {
	data := map[string]any{
		"identifier": "root1",
		"children": []any{
			map[string]any{"identifier": "child1"},
			map[string]any{"identifier": "child2", "nested": map[string]any{"identifier": "grandchild1"}},
		},
	}
	var found []string
	ScanIdentifiers(data, &found)
	assert.ElementsMatch(t, []string{"root1", "child1", "child2", "grandchild1"}, found)
}

func TestAssignFreshIdentifiersRewritesAllAndAvoidsCollisions(t *testing.T) {
	a := NewIDAllocatorFromUsed(nil)
	data := map[string]any{
		"identifier": "placeholder",
		"children": []any{
			map[string]any{"identifier": "placeholder"},
		},
	}
	rewritten, err := AssignFreshIdentifiers(data, a)
	require.NoError(t, err)

	m := rewritten.(map[string]any)
	rootID := m["identifier"].(string)
	childID := m["children"].([]any)[0].(map[string]any)["identifier"].(string)

	assert.NotEqual(t, "placeholder", rootID)
	assert.NotEqual(t, "placeholder", childID)
	assert.NotEqual(t, rootID, childID)
}
