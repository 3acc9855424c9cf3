package instruction

import "github.com/nodius/graphsync/errors"

// Inverse computes, from the pre-mutation object, the instruction that
// undoes i: Apply(Apply(obj, i), Inverse(obj, i)) == obj for every valid
// (obj, i). It must be called before Apply mutates the working copy.
func Inverse(obj map[string]any, i Instruction) (Instruction, error) {
	if err := Validate(i); err != nil {
		return Instruction{}, err
	}
	segs, err := parsePath(i.Path)
	if err != nil {
		return Instruction{}, err
	}

	switch i.Op {
	case Set:
		old, err := resolve(obj, segs)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return Instruction{Op: Delete, Path: i.Path}, nil
			}
			return Instruction{}, err
		}
		return Instruction{Op: Set, Path: i.Path, Value: old}, nil

	case Delete:
		old, err := resolve(obj, segs)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: Set, Path: i.Path, Value: old}, nil

	case InsertArray:
		return Instruction{Op: RemoveArray, Path: i.Path, Index: i.Index}, nil

	case RemoveArray:
		arr, err := resolveArray(obj, segs, i.Path)
		if err != nil {
			return Instruction{}, err
		}
		if i.Index < 0 || i.Index >= len(arr) {
			return Instruction{}, errors.Wrapf(errors.ErrInvalidInstruction, "REMOVE_ARRAY index %d out of range", i.Index)
		}
		return Instruction{Op: InsertArray, Path: i.Path, Index: i.Index, Value: arr[i.Index]}, nil

	case MoveArray:
		return Instruction{Op: MoveArray, Path: i.Path, From: i.To, To: i.From}, nil
	}

	return Instruction{}, errors.Wrapf(errors.ErrInvalidInstruction, "unsupported operator %q", i.Op)
}

func resolveArray(obj map[string]any, segs []segment, path string) ([]any, error) {
	val, err := resolve(obj, segs)
	if err != nil {
		return nil, err
	}
	arr, ok := val.([]any)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidInstruction, "path %q is not an array", path)
	}
	return arr, nil
}
