package instruction

import (
	"github.com/nodius/graphsync/errors"
)

// Apply returns a new object with i applied to obj. It never mutates obj;
// only the path from root to the edited leaf is copied (structural
// sharing). If guard is non-nil, it is invoked with the sub-object the
// instruction targets before the mutation is made, and may reject the
// instruction by returning an error.
func Apply(obj map[string]any, i Instruction, guard Guard) (map[string]any, error) {
	if err := Validate(i); err != nil {
		return nil, err
	}
	segs, err := parsePath(i.Path)
	if err != nil {
		return nil, err
	}

	if guard != nil {
		target, _ := resolve(obj, segs)
		if err := guard(i.Path, target); err != nil {
			return nil, err
		}
	}

	leaf := leafMutator(i)
	newObj, err := applyRec(obj, segs, leaf)
	if err != nil {
		return nil, err
	}
	result, ok := newObj.(map[string]any)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidInstruction, "path %q does not resolve to the root object", i.Path)
	}
	return result, nil
}

// resolve performs a read-only walk to the value at segs, for guard checks.
// Returns (nil, error) if the path doesn't exist; callers treat a missing
// target as "nothing to guard" rather than a hard failure, since DELETE and
// array ops can legitimately target an about-to-be-created slot.
func resolve(node any, segs []segment) (any, error) {
	cur := node
	for _, seg := range segs {
		if seg.isIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index < 0 || seg.index >= len(arr) {
				return nil, errors.New("index out of range")
			}
			cur = arr[seg.index]
		} else {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, errors.New("not a map")
			}
			child, exists := m[seg.key]
			if !exists {
				return nil, errors.Wrap(errors.ErrNotFound, seg.key)
			}
			cur = child
		}
	}
	return cur, nil
}

// leafMutator returns the function applied to the container that directly
// holds the final path segment, producing the replacement container.
func leafMutator(i Instruction) func(container any, seg segment) (any, error) {
	switch i.Op {
	case Set:
		return func(container any, seg segment) (any, error) {
			if seg.isIndex {
				arr, ok := container.([]any)
				if !ok || seg.index < 0 || seg.index >= len(arr) {
					return nil, errors.Wrapf(errors.ErrInvalidInstruction, "SET index %d out of range", seg.index)
				}
				newArr := cloneSlice(arr)
				newArr[seg.index] = i.Value
				return newArr, nil
			}
			m, ok := container.(map[string]any)
			if !ok {
				return nil, errors.Wrap(errors.ErrInvalidInstruction, "SET target is not a map")
			}
			newMap := cloneMap(m)
			newMap[seg.key] = i.Value
			return newMap, nil
		}

	case Delete:
		return func(container any, seg segment) (any, error) {
			m, ok := container.(map[string]any)
			if !ok {
				return nil, errors.Wrap(errors.ErrInvalidInstruction, "DELETE target is not a map")
			}
			if _, exists := m[seg.key]; !exists {
				return nil, errors.Wrapf(errors.ErrNotFound, "DELETE path key %q", seg.key)
			}
			newMap := cloneMap(m)
			delete(newMap, seg.key)
			return newMap, nil
		}

	case InsertArray:
		return func(container any, seg segment) (any, error) {
			arr, err := fieldArray(container, seg)
			if err != nil {
				return nil, err
			}
			if i.Index < 0 || i.Index > len(arr) {
				return nil, errors.Wrapf(errors.ErrInvalidInstruction, "INSERT_ARRAY index %d out of range (len %d)", i.Index, len(arr))
			}
			newArr := make([]any, 0, len(arr)+1)
			newArr = append(newArr, arr[:i.Index]...)
			newArr = append(newArr, i.Value)
			newArr = append(newArr, arr[i.Index:]...)
			return replaceFieldArray(container, seg, newArr)
		}

	case RemoveArray:
		return func(container any, seg segment) (any, error) {
			arr, err := fieldArray(container, seg)
			if err != nil {
				return nil, err
			}
			if i.Index < 0 || i.Index >= len(arr) {
				return nil, errors.Wrapf(errors.ErrInvalidInstruction, "REMOVE_ARRAY index %d out of range (len %d)", i.Index, len(arr))
			}
			newArr := make([]any, 0, len(arr)-1)
			newArr = append(newArr, arr[:i.Index]...)
			newArr = append(newArr, arr[i.Index+1:]...)
			return replaceFieldArray(container, seg, newArr)
		}

	case MoveArray:
		return func(container any, seg segment) (any, error) {
			arr, err := fieldArray(container, seg)
			if err != nil {
				return nil, err
			}
			if i.From < 0 || i.From >= len(arr) || i.To < 0 || i.To >= len(arr) {
				return nil, errors.Wrapf(errors.ErrInvalidInstruction, "MOVE_ARRAY indices (%d,%d) out of range (len %d)", i.From, i.To, len(arr))
			}
			newArr := cloneSlice(arr)
			moved := newArr[i.From]
			newArr = append(newArr[:i.From], newArr[i.From+1:]...)
			tail := make([]any, len(newArr)-i.To)
			copy(tail, newArr[i.To:])
			newArr = append(newArr[:i.To], moved)
			newArr = append(newArr, tail...)
			return replaceFieldArray(container, seg, newArr)
		}
	}
	return nil
}

// fieldArray extracts the []any that an array operator targets: either the
// container itself (when seg is an index, meaning the array op's Path
// pointed straight at an array) or container[seg.key].
func fieldArray(container any, seg segment) ([]any, error) {
	if seg.isIndex {
		arr, ok := container.([]any)
		if !ok {
			return nil, errors.Wrap(errors.ErrInvalidInstruction, "array op target is not an array")
		}
		return arr, nil
	}
	m, ok := container.(map[string]any)
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidInstruction, "array op target is not a map")
	}
	raw, exists := m[seg.key]
	if !exists {
		return nil, errors.Wrapf(errors.ErrNotFound, "array op path key %q", seg.key)
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidInstruction, "field %q is not an array", seg.key)
	}
	return arr, nil
}

func replaceFieldArray(container any, seg segment, newArr []any) (any, error) {
	if seg.isIndex {
		return newArr, nil
	}
	m := container.(map[string]any)
	newMap := cloneMap(m)
	newMap[seg.key] = newArr
	return newMap, nil
}

// applyRec walks segs, rebuilding only the nodes on the path from root to
// the mutated leaf. leaf is invoked with the container that directly holds
// the final segment and must return that container's replacement.
func applyRec(node any, segs []segment, leaf func(container any, seg segment) (any, error)) (any, error) {
	if leaf == nil {
		return nil, errors.New("unsupported operator")
	}
	if len(segs) == 1 {
		return leaf(node, segs[0])
	}

	seg := segs[0]
	if seg.isIndex {
		arr, ok := node.([]any)
		if !ok || seg.index < 0 || seg.index >= len(arr) {
			return nil, errors.Wrapf(errors.ErrNotFound, "array index %d", seg.index)
		}
		newArr := cloneSlice(arr)
		child, err := applyRec(arr[seg.index], segs[1:], leaf)
		if err != nil {
			return nil, err
		}
		newArr[seg.index] = child
		return newArr, nil
	}

	m, ok := node.(map[string]any)
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidInstruction, "intermediate path segment is not a map")
	}
	child, exists := m[seg.key]
	if !exists {
		return nil, errors.Wrapf(errors.ErrNotFound, "path key %q", seg.key)
	}
	newChild, err := applyRec(child, segs[1:], leaf)
	if err != nil {
		return nil, err
	}
	newMap := cloneMap(m)
	newMap[seg.key] = newChild
	return newMap, nil
}

func cloneMap(m map[string]any) map[string]any {
	newMap := make(map[string]any, len(m))
	for k, v := range m {
		newMap[k] = v
	}
	return newMap
}

func cloneSlice(s []any) []any {
	newSlice := make([]any, len(s))
	copy(newSlice, s)
	return newSlice
}
