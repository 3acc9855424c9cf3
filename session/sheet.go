package session

import "github.com/nodius/graphsync/errors"

// createSheet implements spec.md §4.2.4: refused if the graph's metadata
// carries noMultipleSheet and a sheet already exists.
func createSheet(mi *ManagedInstance, sheetKey, name string) error {
	if mi.graph.Metadata["noMultipleSheet"] && len(mi.graph.SheetList) >= 1 {
		return errors.Wrapf(errors.ErrInvalidInstruction, "graph %q does not allow multiple sheets", mi.InstanceKey)
	}
	if _, exists := mi.graph.SheetList[sheetKey]; exists {
		return errors.Wrapf(errors.ErrDuplicateKey, "sheet %q already exists", sheetKey)
	}
	if mi.graph.SheetList == nil {
		mi.graph.SheetList = make(map[string]string)
	}
	mi.graph.SheetList[sheetKey] = name
	mi.sheet(sheetKey) // materialize empty sheetState
	return nil
}

func renameSheet(mi *ManagedInstance, sheetKey, name string) error {
	if _, exists := mi.graph.SheetList[sheetKey]; !exists {
		return errors.Wrapf(errors.ErrNotFound, "sheet %q", sheetKey)
	}
	mi.graph.SheetList[sheetKey] = name
	return nil
}

// deleteSheet removes the sheet from the graph's sheet list and drops its
// in-memory state, history included, returning the sheet's node and edge
// keys; nothing of the sheet is archived. The caller is responsible for the
// synchronous Store-side removal of every node/edge document on the sheet.
func deleteSheet(mi *ManagedInstance, sheetKey string) ([]string, []string, error) {
	if _, exists := mi.graph.SheetList[sheetKey]; !exists {
		return nil, nil, errors.Wrapf(errors.ErrNotFound, "sheet %q", sheetKey)
	}
	s, ok := mi.sheets[sheetKey]
	var nodeKeys, edgeKeys []string
	if ok {
		for k := range s.nodes {
			nodeKeys = append(nodeKeys, k)
		}
		for k := range s.edges {
			edgeKeys = append(edgeKeys, k)
		}
	}
	delete(mi.graph.SheetList, sheetKey)
	delete(mi.sheets, sheetKey)
	return nodeKeys, edgeKeys, nil
}
