package instruction

import (
	"strconv"
	"strings"

	"github.com/nodius/graphsync/errors"
)

// segment is one step of a resolved path: either a map key or an array
// index, never both.
type segment struct {
	key      string
	index    int
	isIndex  bool
}

// parsePath tokenizes a dotted path like "data.items[3].name" into a
// sequence of map-key and array-index segments.
func parsePath(path string) ([]segment, error) {
	if path == "" {
		return nil, errors.Wrap(errors.ErrInvalidInstruction, "empty path")
	}

	var segs []segment
	var field strings.Builder

	flushField := func() {
		if field.Len() > 0 {
			segs = append(segs, segment{key: field.String()})
			field.Reset()
		}
	}

	i := 0
	for i < len(path) {
		c := path[i]
		switch {
		case c == '.':
			flushField()
			i++
		case c == '[':
			flushField()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, errors.Wrapf(errors.ErrInvalidInstruction, "unterminated '[' in path %q", path)
			}
			idxStr := path[i+1 : i+end]
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrInvalidInstruction, "non-numeric array index %q in path %q", idxStr, path)
			}
			segs = append(segs, segment{index: idx, isIndex: true})
			i += end + 1
		default:
			field.WriteByte(c)
			i++
		}
	}
	flushField()

	if len(segs) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInstruction, "path %q resolved to no segments", path)
	}
	return segs, nil
}
