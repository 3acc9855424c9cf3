package cluster

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/nodius/graphsync/errors"
	"github.com/nodius/graphsync/store"
)

// Config configures a Coordinator.
type Config struct {
	PeerID            string
	Host              string
	BasePort          int
	HeartbeatEvery    time.Duration
	DiscoverEvery     time.Duration
	StaleAfter        time.Duration
	BroadcastRatePerS int
	DirectTimeout     time.Duration
}

// DirectHandler answers an inbound direct request's payload with a response
// payload. The session manager supplies this for request/response
// application messages outside the ownership protocol.
type DirectHandler func(senderID string, payload json.RawMessage) (json.RawMessage, error)

// Coordinator is the Cluster Coordinator: it owns the ownership map, the
// registry heartbeat/discovery loops, and the two TCP channels.
type Coordinator struct {
	cfg     Config
	log     *zap.SugaredLogger
	owners  *ownershipMap
	rs      store.RegistryStore
	reg     *registry
	tr      *Transport
	onEvent func(instanceKey string, released bool)
	onDirect DirectHandler

	cancel context.CancelFunc
}

// New constructs a Coordinator and binds its TCP listeners, but does not
// start the registry heartbeat/discovery loops — call Start for that.
func New(cfg Config, rs store.RegistryStore, log *zap.SugaredLogger, onDirect DirectHandler) (*Coordinator, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Coordinator{
		cfg:      cfg,
		log:      log,
		owners:   newOwnershipMap(cfg.PeerID),
		rs:       rs,
		onDirect: onDirect,
	}

	tr, err := NewTransport(cfg.PeerID, cfg.Host, cfg.BasePort, cfg.BroadcastRatePerS, log, c.handleBroadcast, c.handleDirect)
	if err != nil {
		return nil, errors.Wrap(err, "creating cluster transport")
	}
	c.tr = tr

	c.reg = &registry{
		peerID:         cfg.PeerID,
		host:           cfg.Host,
		port:           cfg.BasePort,
		rs:             rs,
		log:            log,
		heartbeatEvery: cfg.HeartbeatEvery,
		discoverEvery:  cfg.DiscoverEvery,
		staleAfter:     cfg.StaleAfter,
		known:          make(map[string]store.RegistryRow),
		onPeerSeen: func(peerID, host string, port int) {
			if err := c.tr.ConnectSubscriber(peerID, host, port); err != nil {
				log.Warnw("failed to subscribe to peer broadcasts", "peer", peerID, "error", err)
			}
		},
		onPeerGone: func(peerID string) {
			c.tr.DisconnectPeer(peerID)
			c.owners.pruneOwnedBy(peerID)
		},
	}

	return c, nil
}

// Start registers this process in cluster_registry and launches the
// heartbeat/discovery background loops.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if err := c.reg.register(ctx); err != nil {
		return errors.Wrap(err, "registering in cluster_registry")
	}
	go c.reg.runHeartbeat(ctx)
	go c.reg.runDiscovery(ctx)
	return nil
}

// Stop marks this process's registry row offline, closes both TCP channels,
// and stops the background loops. Per spec.md §5: stop accepting, then
// close cluster sockets as the last step of shutdown.
func (c *Coordinator) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.reg.shutdown(ctx); err != nil {
		c.log.Warnw("failed to mark registry row offline", "error", err)
	}
	return c.tr.Close()
}

// GetOwnerOf is a pure read of the ownership map: "" means unowned.
func (c *Coordinator) GetOwnerOf(instanceKey string) string {
	return c.owners.getOwnerOf(instanceKey)
}

// Self returns this process's peer id, for comparing against GetOwnerOf.
func (c *Coordinator) Self() string {
	return c.owners.Self()
}

// PeerAddress returns the last-known host/port for a peer discovered via
// the registry, for building a register redirect response.
func (c *Coordinator) PeerAddress(peerID string) (string, int, bool) {
	return c.reg.addressOf(peerID)
}

// ClaimOwnership sets the local map to self and broadcasts IManageInstance.
func (c *Coordinator) ClaimOwnership(instanceKey string) error {
	if err := c.owners.claimOwnership(instanceKey); err != nil {
		return err
	}
	body, _ := json.Marshal(ManageInstance{InstanceKey: instanceKey})
	c.tr.Broadcast(PayloadManageInstance, body)
	return nil
}

// ReleaseOwnership deletes the local map entry and broadcasts
// IReleaseInstance.
func (c *Coordinator) ReleaseOwnership(instanceKey string) {
	c.owners.releaseOwnership(instanceKey)
	body, _ := json.Marshal(ReleaseInstance{InstanceKey: instanceKey})
	c.tr.Broadcast(PayloadReleaseInstance, body)
}

// ClusterStats is a point-in-time snapshot of cluster load, for health
// endpoints.
type ClusterStats struct {
	PeerCount           int `json:"peerCount"`
	OwnedInstanceCount  int `json:"ownedInstanceCount"`
	InFlightDirectSends int `json:"inFlightDirectSends"`
}

// Stats reports peer count, ownership map size, and in-flight direct sends.
func (c *Coordinator) Stats() ClusterStats {
	return ClusterStats{
		PeerCount:           c.reg.peerCount(),
		OwnedInstanceCount:  c.owners.size(),
		InFlightDirectSends: c.tr.inFlightDirectSends(),
	}
}

// SendDirect addresses a request to a named peer and waits for its
// response or the configured timeout.
func (c *Coordinator) SendDirect(ctx context.Context, peerID, peerHost string, peerBasePort int, payload json.RawMessage) (json.RawMessage, error) {
	resp, err := c.tr.SendDirect(ctx, peerID, peerHost, peerBasePort, payload, c.cfg.DirectTimeout)
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

func (c *Coordinator) handleBroadcast(env Envelope) {
	var tp TypedPayload
	if err := json.Unmarshal(env.Payload, &tp); err != nil {
		return
	}
	switch tp.Kind {
	case PayloadManageInstance:
		var mi ManageInstance
		if err := json.Unmarshal(tp.Body, &mi); err != nil {
			return
		}
		c.owners.observeManage(mi.InstanceKey, env.SenderID)
	case PayloadReleaseInstance:
		var ri ReleaseInstance
		if err := json.Unmarshal(tp.Body, &ri); err != nil {
			return
		}
		c.owners.observeRelease(ri.InstanceKey)
	}
}

func (c *Coordinator) handleDirect(env Envelope) Envelope {
	if c.onDirect == nil {
		return Envelope{ID: env.ID}
	}
	resp, err := c.onDirect(env.SenderID, env.Payload)
	if err != nil {
		c.log.Warnw("direct handler failed", "error", err)
		return Envelope{ID: env.ID}
	}
	return Envelope{ID: env.ID, Payload: resp}
}
