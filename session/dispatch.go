package session

import (
	"context"
	"encoding/json"
	"time"
)

// routeMessage dispatches one decoded client message. It returns false when
// the socket must be closed (spec.md §7's "Protocol violation" row:
// oversize batch, ping/op from an unbound socket); the caller (readPump)
// tears down the connection on a false return.
func (m *Manager) routeMessage(c *Client, msg *InMessage) bool {
	ctx := context.Background()

	switch msg.Type {
	case "registerUserOnGraph":
		c.sendJSON(m.registerUserOnGraph(ctx, c, msg))
		return true
	case "registerUserOnNodeConfig":
		c.sendJSON(m.registerUserOnNodeConfig(ctx, c, msg))
		return true
	}

	if c.InstanceKey == "" {
		return false
	}

	switch msg.Type {
	case "__ping__":
		c.sendJSON(handlePing(c))
	case "disconnectUserOnGraph", "disconnectUserOnNodeConfig":
		m.disconnectUser(c)
		if msg.ID != "" {
			c.sendJSON(response(msg.ID, true, ""))
		}
	case "applyInstructionToGraph":
		return m.handleApplyInstructionToGraph(c, msg)
	case "applyInstructionToNodeConfig":
		return m.handleApplyInstructionToNodeConfig(c, msg)
	case "generateUniqueId":
		m.handleGenerateUniqueID(c, msg)
	case "batchCreateElements":
		m.handleBatchCreateElements(ctx, c, msg)
	case "batchDeleteElements":
		m.handleBatchDeleteElements(ctx, c, msg)
	case "createSheet":
		m.handleCreateSheet(c, msg)
	case "renameSheet":
		m.handleRenameSheet(c, msg)
	case "deleteSheet":
		m.handleDeleteSheet(ctx, c, msg)
	case "forceSave":
		m.handleForceSave(ctx, c, msg)
	case "toggleAutoSave":
		m.handleToggleAutoSave(c, msg)
	default:
		m.log.Debugw("unknown message type", "type", msg.Type, "user", c.UserID)
	}
	return true
}

func (m *Manager) boundInstance(c *Client) (*ManagedInstance, bool) {
	return m.instanceByKey(c.InstanceKey)
}

// handleApplyInstructionToGraph implements spec.md §4.2.2. Batch size is
// checked before the instance is even looked up, per step 1's "close the
// socket" disposition for protocol abuse.
func (m *Manager) handleApplyInstructionToGraph(c *Client, msg *InMessage) bool {
	if len(msg.Instructions) > m.cfg.MaxInstructionBatch {
		return false
	}
	if c.IsNodeConfig {
		c.sendJSON(response(msg.ID, false, "socket is bound to a node-config instance"))
		return true
	}
	inst, ok := m.boundInstance(c)
	if !ok {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return true
	}

	var result applyResult
	inst.submit(func() {
		result = applyInstructionBatch(inst, msg.Instructions)
		if result.validationErr == nil {
			recordHistory(inst, result.affectedSheets, "applyInstructionToGraph", msg.Instructions)
		}
	})

	if result.validationErr != nil {
		c.sendJSON(errToResponse(msg.ID, result.validationErr))
		return true
	}
	if msg.ID != "" {
		c.sendJSON(response(msg.ID, true, ""))
	}

	fanout := map[string]any{"type": "applyInstructionToGraph", "instructions": msg.Instructions}
	for _, peer := range inst.usersOnSheets(result.affectedSheets) {
		if peer.UserID == c.UserID {
			continue
		}
		peer.sendJSON(fanout)
	}
	return true
}

func (m *Manager) handleApplyInstructionToNodeConfig(c *Client, msg *InMessage) bool {
	if len(msg.Instructions) > m.cfg.MaxInstructionBatch {
		return false
	}
	if !c.IsNodeConfig {
		c.sendJSON(response(msg.ID, false, "socket is bound to a graph instance"))
		return true
	}
	inst, ok := m.boundInstance(c)
	if !ok {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return true
	}

	var applyErr error
	inst.submit(func() {
		applyErr = applyNodeConfigBatch(inst, msg.Instructions)
		if applyErr == nil {
			recordHistory(inst, map[string]struct{}{"": {}}, "applyInstructionToNodeConfig", msg.Instructions)
			inst.sheet("").dirty = true
		}
	})

	if applyErr != nil {
		c.sendJSON(errToResponse(msg.ID, applyErr))
		return true
	}
	if msg.ID != "" {
		c.sendJSON(response(msg.ID, true, ""))
	}

	fanout := map[string]any{"type": "applyInstructionToNodeConfig", "instructions": msg.Instructions}
	for _, peer := range inst.allUsers() {
		if peer.UserID == c.UserID {
			continue
		}
		peer.sendJSON(fanout)
	}
	return true
}

// recordHistory appends the exact fan-out message to every affected
// sheet's instructionHistory, timestamped once so every sheet in the same
// batch shares one non-decreasing timestamp (spec.md §8 invariant 6).
func recordHistory(inst *ManagedInstance, sheets map[string]struct{}, msgType string, instructions []InstructionEnvelope) {
	blob, _ := json.Marshal(map[string]any{"type": msgType, "instructions": instructions})
	ts := time.Now()
	for sheetID := range sheets {
		s := inst.sheet(sheetID)
		s.history = append(s.history, historyEntry{Timestamp: ts, Message: blob})
	}
}

func (m *Manager) handleGenerateUniqueID(c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}
	count := msg.Count
	if count <= 0 {
		count = 1
	}

	var ids []string
	var err error
	inst.submit(func() {
		for i := 0; i < count; i++ {
			id, e := inst.idAlloc.Next()
			if e != nil {
				err = e
				return
			}
			ids = append(ids, id)
		}
	})

	if err != nil {
		c.sendJSON(errToResponse(msg.ID, err))
		return
	}
	c.sendJSON(okWithField(msg.ID, "ids", ids))
}

func (m *Manager) handleBatchCreateElements(ctx context.Context, c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}

	var result batchCreateResult
	inst.submit(func() {
		result = batchCreateElements(inst, msg.SheetID, msg.Nodes, msg.Edges)
		if result.err == nil {
			recordHistory(inst, result.affectedSheets, "batchCreateElements", nil)
		}
	})

	if result.err != nil {
		c.sendJSON(errToResponse(msg.ID, result.err))
		return
	}
	if msg.ID != "" {
		c.sendJSON(response(msg.ID, true, ""))
	}

	fanout := map[string]any{"type": "batchCreateElements", "sheetId": msg.SheetID, "nodes": msg.Nodes, "edges": msg.Edges}
	for _, peer := range inst.usersOnSheets(result.affectedSheets) {
		if peer.UserID == c.UserID {
			continue
		}
		peer.sendJSON(fanout)
	}
}

func (m *Manager) handleBatchDeleteElements(ctx context.Context, c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}

	var result batchCreateResult
	inst.submit(func() {
		result = batchDeleteElements(inst, msg.SheetID, msg.NodeKeys, msg.EdgeKeys)
		if result.err == nil {
			recordHistory(inst, result.affectedSheets, "batchDeleteElements", nil)
		}
	})

	if result.err != nil {
		c.sendJSON(errToResponse(msg.ID, result.err))
		return
	}

	if msg.ID != "" {
		c.sendJSON(response(msg.ID, true, ""))
	}

	fanout := map[string]any{"type": "batchDeleteElements", "sheetId": msg.SheetID, "nodeKeys": msg.NodeKeys, "edgeKeys": msg.EdgeKeys}
	for _, peer := range inst.usersOnSheets(result.affectedSheets) {
		if peer.UserID == c.UserID {
			continue
		}
		peer.sendJSON(fanout)
	}
}

func (m *Manager) handleCreateSheet(c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok || inst.IsNodeConfig {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}
	var err error
	inst.submit(func() { err = createSheet(inst, msg.Key, msg.Name) })
	m.replySheetOp(c, inst, msg, "createSheet", err)
}

func (m *Manager) handleRenameSheet(c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok || inst.IsNodeConfig {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}
	var err error
	inst.submit(func() { err = renameSheet(inst, msg.Key, msg.Name) })
	m.replySheetOp(c, inst, msg, "renameSheet", err)
}

func (m *Manager) handleDeleteSheet(ctx context.Context, c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok || inst.IsNodeConfig {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}
	var nodeKeys, edgeKeys []string
	var err error
	inst.submit(func() { nodeKeys, edgeKeys, err = deleteSheet(inst, msg.Key) })
	if err != nil {
		c.sendJSON(errToResponse(msg.ID, err))
		return
	}
	for _, k := range nodeKeys {
		if delErr := m.store.DeleteNode(ctx, inst.InstanceKey, k); delErr != nil {
			m.log.Warnw("sheet delete: node removal failed", "instance", inst.InstanceKey, "node", k, "error", delErr)
		}
	}
	for _, k := range edgeKeys {
		if delErr := m.store.DeleteEdge(ctx, inst.InstanceKey, k); delErr != nil {
			m.log.Warnw("sheet delete: edge removal failed", "instance", inst.InstanceKey, "edge", k, "error", delErr)
		}
	}
	m.replySheetOp(c, inst, msg, "deleteSheet", nil)
}

// replySheetOp replies to the sender and broadcasts to every user of every
// sheet of the graph, per spec.md §4.2.4 ("all three broadcast to every
// user of every sheet of the graph").
func (m *Manager) replySheetOp(c *Client, inst *ManagedInstance, msg *InMessage, msgType string, err error) {
	if err != nil {
		c.sendJSON(errToResponse(msg.ID, err))
		return
	}
	if msg.ID != "" {
		c.sendJSON(response(msg.ID, true, ""))
	}
	fanout := map[string]any{"type": msgType, "key": msg.Key, "name": msg.Name}
	for _, peer := range inst.allUsers() {
		if peer.UserID == c.UserID {
			continue
		}
		peer.sendJSON(fanout)
	}
}

func (m *Manager) handleForceSave(ctx context.Context, c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}
	if err := m.forceSave(ctx, inst); err != nil {
		c.sendJSON(errToResponse(msg.ID, err))
		return
	}
	if msg.ID != "" {
		c.sendJSON(response(msg.ID, true, ""))
	}
}

func (m *Manager) handleToggleAutoSave(c *Client, msg *InMessage) {
	inst, ok := m.boundInstance(c)
	if !ok {
		c.sendJSON(response(msg.ID, false, "instance not loaded"))
		return
	}
	m.toggleAutoSave(inst, msg.Enabled)
	if msg.ID != "" {
		c.sendJSON(response(msg.ID, true, ""))
	}
}
