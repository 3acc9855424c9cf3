package instruction

import "github.com/nodius/graphsync/errors"

// Validate is a total, I/O-free schema check: well-formed path, supported
// operator, and non-negative array indices. It does not inspect Value;
// a value of the wrong type for its target is only caught by Apply.
func Validate(i Instruction) error {
	if _, err := parsePath(i.Path); err != nil {
		return err
	}

	switch i.Op {
	case Set, Delete:
		return nil
	case InsertArray:
		if i.Index < 0 {
			return errors.Wrapf(errors.ErrInvalidInstruction, "INSERT_ARRAY index %d is negative", i.Index)
		}
		return nil
	case RemoveArray:
		if i.Index < 0 {
			return errors.Wrapf(errors.ErrInvalidInstruction, "REMOVE_ARRAY index %d is negative", i.Index)
		}
		return nil
	case MoveArray:
		if i.From < 0 || i.To < 0 {
			return errors.Wrapf(errors.ErrInvalidInstruction, "MOVE_ARRAY indices (%d,%d) must be non-negative", i.From, i.To)
		}
		return nil
	default:
		return errors.Wrapf(errors.ErrInvalidInstruction, "unsupported operator %q", i.Op)
	}
}
