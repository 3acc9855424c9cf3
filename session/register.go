package session

import "context"

// registerUserOnGraph implements spec.md §4.2 "Registration" for graph
// instances: ownership check/redirect, load-on-demand, user-list join, and
// catch-up via missingMessages.
func (m *Manager) registerUserOnGraph(ctx context.Context, c *Client, msg *InMessage) map[string]any {
	graphKey := msg.GraphKey

	if m.coord != nil {
		owner := m.coord.GetOwnerOf(graphKey)
		if owner != "" && owner != m.coord.Self() {
			host, port, ok := m.coord.PeerAddress(owner)
			if ok {
				return redirectResponse(msg.ID, host, port)
			}
		}
	}

	inst, ok := m.instanceByKey(graphKey)
	if !ok {
		loaded, err := loadGraphInstance(ctx, m.store, graphKey)
		if err != nil {
			return response(msg.ID, false, err.Error())
		}
		if loaded.isDirty() {
			// spec.md §7 "Integrity violation at load": a dangling edge
			// dropped during load is purged from the store immediately,
			// not left for the next auto-save tick.
			if err := flushInstance(ctx, m.store, loaded); err != nil {
				return response(msg.ID, false, err.Error())
			}
			m.log.Warnw("dropped dangling edge(s) at load, force-flushed", "graph", graphKey)
		}
		if m.coord != nil {
			if err := m.coord.ClaimOwnership(graphKey); err != nil {
				return response(msg.ID, false, err.Error())
			}
		}
		m.putInstance(graphKey, loaded)
		inst = loaded
	}

	c.InstanceKey = graphKey
	c.IsNodeConfig = false
	c.BoundSheetID = msg.SheetID
	c.UserID = msg.UserID
	c.UserName = msg.UserName

	var missing []json_
	inst.submit(func() {
		inst.addUser(c)
		missing = catchUpMessages(inst, msg.SheetID, msg.FromTimestamp)
	})

	return okWithField(msg.ID, "missingMessages", missing)
}

// registerUserOnNodeConfig is the node-config analogue of
// registerUserOnGraph; node-config instances have no sheets, so catch-up
// always covers the instance's single implicit history stream.
func (m *Manager) registerUserOnNodeConfig(ctx context.Context, c *Client, msg *InMessage) map[string]any {
	key := msg.NodeConfigKey
	instanceKey := nodeConfigInstanceKey(key)

	if m.coord != nil {
		owner := m.coord.GetOwnerOf(instanceKey)
		if owner != "" && owner != m.coord.Self() {
			host, port, ok := m.coord.PeerAddress(owner)
			if ok {
				return redirectResponse(msg.ID, host, port)
			}
		}
	}

	inst, ok := m.instanceByKey(instanceKey)
	if !ok {
		loaded, err := loadNodeConfigInstance(ctx, m.store, key)
		if err != nil {
			return response(msg.ID, false, err.Error())
		}
		if m.coord != nil {
			if err := m.coord.ClaimOwnership(instanceKey); err != nil {
				return response(msg.ID, false, err.Error())
			}
		}
		m.putInstance(instanceKey, loaded)
		inst = loaded
	}

	c.InstanceKey = instanceKey
	c.IsNodeConfig = true
	c.UserID = msg.UserID
	c.UserName = msg.UserName

	var missing []json_
	inst.submit(func() {
		inst.addUser(c)
		missing = catchUpMessages(inst, "", msg.FromTimestamp)
	})

	return okWithField(msg.ID, "missingMessages", missing)
}

// disconnectUserOnGraph / disconnectUserOnNodeConfig are the explicit
// unbind path; the implicit path (socket close) goes through
// Manager.unregisterClient instead.
func (m *Manager) disconnectUser(c *Client) {
	if c.InstanceKey == "" {
		return
	}
	inst, ok := m.instanceByKey(c.InstanceKey)
	if !ok {
		return
	}
	inst.removeUser(c)
	m.fanOutDisconnect(inst, c)
	c.InstanceKey = ""
	c.BoundSheetID = ""
}
