package cluster

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nodius/graphsync/errors"
)

// wireConn is the minimal streaming-JSON surface transport needs from a TCP
// connection, mirrored on the sync package's Conn interface for the same
// testability reason: tests substitute an in-memory pipe.
type wireConn interface {
	Encode(v any) error
	Decode(v any) error
	Close() error
}

type jsonConn struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

func newJSONConn(conn net.Conn) *jsonConn {
	return &jsonConn{conn: conn, enc: json.NewEncoder(conn), dec: json.NewDecoder(conn)}
}

func (c *jsonConn) Encode(v any) error { return c.enc.Encode(v) }
func (c *jsonConn) Decode(v any) error { return c.dec.Decode(v) }
func (c *jsonConn) Close() error       { return c.conn.Close() }

// Transport owns the two TCP channels described in spec.md §4.1: a
// publish/subscribe broadcast socket at basePort+1000, and a request/response
// direct socket at basePort+1001. It does not interpret Envelope payloads —
// that's the Coordinator's job — it only frames, routes, and rate-limits.
type Transport struct {
	selfID string
	host   string
	log    *zap.SugaredLogger

	broadcastLn net.Listener
	directLn    net.Listener

	mu          sync.Mutex
	subscribers map[string]wireConn // peerId -> our publisher's connected subscriber
	directConns map[string]wireConn // peerId -> our outbound direct connection to them

	limiter *rate.Limiter

	pendingMu sync.Mutex
	pending   map[string]chan Envelope
	inFlight  int32 // outstanding SendDirect calls awaiting a response, for Stats()

	onBroadcast func(Envelope)
	onDirect    func(Envelope) Envelope
}

// NewTransport binds the broadcast and direct listeners. onBroadcast is
// invoked for every broadcast Envelope received from any subscribed peer.
// onDirect is invoked for every direct request received and must return the
// response Envelope to send back.
func NewTransport(selfID, host string, basePort, ratePerSecond int, log *zap.SugaredLogger,
	onBroadcast func(Envelope), onDirect func(Envelope) Envelope) (*Transport, error) {

	broadcastLn, err := net.Listen("tcp", addr(host, basePort+1000))
	if err != nil {
		return nil, errors.Wrapf(err, "binding broadcast listener on %s", addr(host, basePort+1000))
	}
	directLn, err := net.Listen("tcp", addr(host, basePort+1001))
	if err != nil {
		broadcastLn.Close()
		return nil, errors.Wrapf(err, "binding direct listener on %s", addr(host, basePort+1001))
	}

	t := &Transport{
		selfID:      selfID,
		host:        host,
		log:         log,
		broadcastLn: broadcastLn,
		directLn:    directLn,
		subscribers: make(map[string]wireConn),
		directConns: make(map[string]wireConn),
		limiter:     rate.NewLimiter(rate.Limit(ratePerSecond), ratePerSecond),
		pending:     make(map[string]chan Envelope),
		onBroadcast: onBroadcast,
		onDirect:    onDirect,
	}
	go t.acceptBroadcastSubscribers()
	go t.acceptDirectConnections()
	return t, nil
}

func addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Close shuts down both listeners and every connection.
func (t *Transport) Close() error {
	t.broadcastLn.Close()
	t.directLn.Close()
	t.mu.Lock()
	for _, c := range t.subscribers {
		c.Close()
	}
	for _, c := range t.directConns {
		c.Close()
	}
	t.mu.Unlock()
	return nil
}

func (t *Transport) acceptBroadcastSubscribers() {
	for {
		conn, err := t.broadcastLn.Accept()
		if err != nil {
			return
		}
		jc := newJSONConn(conn)
		go t.serveSubscriber(jc)
	}
}

// serveSubscriber reads a one-time hello naming the peer, then relays every
// broadcast this process sends into that subscriber's connection.
func (t *Transport) serveSubscriber(c wireConn) {
	var hello Envelope
	if err := c.Decode(&hello); err != nil {
		c.Close()
		return
	}
	t.mu.Lock()
	t.subscribers[hello.SenderID] = c
	t.mu.Unlock()
}

func (t *Transport) acceptDirectConnections() {
	for {
		conn, err := t.directLn.Accept()
		if err != nil {
			return
		}
		jc := newJSONConn(conn)
		go t.serveDirectConn(jc)
	}
}

// serveDirectConn handles one inbound direct connection: every request it
// reads is dispatched to onDirect (or matched to a pending correlation id if
// it's a response) and a reply is written back.
func (t *Transport) serveDirectConn(c wireConn) {
	defer c.Close()
	for {
		var env Envelope
		if err := c.Decode(&env); err != nil {
			return
		}
		switch env.Type {
		case KindResponse:
			t.deliverResponse(env)
		case KindDirect:
			if t.onDirect == nil {
				continue
			}
			resp := t.onDirect(env)
			resp.Type = KindResponse
			resp.ResponseID = env.ID
			resp.SenderID = t.selfID
			if err := c.Encode(resp); err != nil {
				return
			}
		}
	}
}

func (t *Transport) deliverResponse(env Envelope) {
	t.pendingMu.Lock()
	ch, ok := t.pending[env.ResponseID]
	t.pendingMu.Unlock()
	if ok {
		select {
		case ch <- env:
		default:
		}
	}
}

// ConnectSubscriber dials peerHost:peerPort+1000 so this process receives
// that peer's broadcasts on its own onBroadcast callback.
func (t *Transport) ConnectSubscriber(peerID, peerHost string, peerBasePort int) error {
	conn, err := net.Dial("tcp", addr(peerHost, peerBasePort+1000))
	if err != nil {
		return errors.Wrapf(err, "connecting to %s's broadcast publisher", peerID)
	}
	jc := newJSONConn(conn)
	if err := jc.Encode(Envelope{SenderID: t.selfID, Type: KindBroadcast}); err != nil {
		jc.Close()
		return errors.Wrap(err, "sending subscriber hello")
	}
	go func() {
		defer jc.Close()
		for {
			var env Envelope
			if err := jc.Decode(&env); err != nil {
				return
			}
			if t.onBroadcast != nil {
				t.onBroadcast(env)
			}
		}
	}()
	return nil
}

// DisconnectPeer tears down any subscriber/direct links to peerID, called
// when discovery notices the peer has vanished from the registry.
func (t *Transport) DisconnectPeer(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.subscribers[peerID]; ok {
		c.Close()
		delete(t.subscribers, peerID)
	}
	if c, ok := t.directConns[peerID]; ok {
		c.Close()
		delete(t.directConns, peerID)
	}
}

// Broadcast fires payload to every connected subscriber, fire-and-forget,
// rate-limited so a runaway local producer can't saturate peer links.
func (t *Transport) Broadcast(payloadKind string, body json.RawMessage) {
	if !t.limiter.Allow() {
		t.log.Warnw("broadcast dropped by rate limiter", "kind", payloadKind)
		return
	}
	payload, _ := json.Marshal(TypedPayload{Kind: payloadKind, Body: body})
	env := Envelope{
		ID:        uuid.NewString(),
		SenderID:  t.selfID,
		Type:      KindBroadcast,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for peerID, c := range t.subscribers {
		if err := c.Encode(env); err != nil {
			t.log.Warnw("broadcast send failed, dropping subscriber", "peer", peerID, "error", err)
			c.Close()
			delete(t.subscribers, peerID)
		}
	}
}

// SendDirect opens (or reuses) a connection to peerID's direct endpoint,
// sends payload with a fresh correlation id, and blocks until a matching
// response arrives or ctx/timeout expires. Direct sends share the
// coordinator's broadcast rate limiter per spec.md §4.1's "outbound
// broadcasts and direct sends are rate-limited" requirement.
func (t *Transport) SendDirect(ctx context.Context, peerID, peerHost string, peerBasePort int, payload json.RawMessage, timeout time.Duration) (Envelope, error) {
	if !t.limiter.Allow() {
		return Envelope{}, errors.Wrapf(errors.ErrRateLimited, "direct send to %s", peerID)
	}

	t.mu.Lock()
	conn, ok := t.directConns[peerID]
	t.mu.Unlock()
	if !ok {
		raw, err := net.Dial("tcp", addr(peerHost, peerBasePort+1001))
		if err != nil {
			return Envelope{}, errors.Wrapf(errors.ErrUnknownPeer, "dialing %s: %v", peerID, err)
		}
		conn = newJSONConn(raw)
		t.mu.Lock()
		t.directConns[peerID] = conn
		t.mu.Unlock()
		// The dial above only opens the write side we use below; nothing
		// reads the peer's replies off it otherwise, so every SendDirect
		// would hang until timeout. Spawn the read side once per dialed
		// connection, symmetric to serveDirectConn on the accepting end.
		go t.readDirectReplies(peerID, conn)
	}

	id := uuid.NewString()
	env := Envelope{
		ID:        id,
		SenderID:  t.selfID,
		TargetID:  peerID,
		Type:      KindDirect,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	ch := make(chan Envelope, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	if err := conn.Encode(env); err != nil {
		return Envelope{}, errors.Wrapf(err, "sending direct request to %s", peerID)
	}

	atomic.AddInt32(&t.inFlight, 1)
	defer atomic.AddInt32(&t.inFlight, -1)

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timeoutCtx.Done():
		return Envelope{}, errors.Wrapf(errors.ErrTimeout, "direct send to %s", peerID)
	}
}

// readDirectReplies is the read loop for an outbound direct connection: it
// relays every KindResponse envelope to deliverResponse, mirroring
// serveDirectConn's handling of the same envelope type on the accepting
// side of the socket. It exits (and evicts the dead connection so the next
// SendDirect re-dials) on the first decode error.
func (t *Transport) readDirectReplies(peerID string, c wireConn) {
	for {
		var env Envelope
		if err := c.Decode(&env); err != nil {
			t.mu.Lock()
			if t.directConns[peerID] == c {
				delete(t.directConns, peerID)
			}
			t.mu.Unlock()
			c.Close()
			return
		}
		if env.Type == KindResponse {
			t.deliverResponse(env)
		}
	}
}

// inFlightDirectSends reports the number of SendDirect calls currently
// awaiting a response, for the coordinator's Stats() metrics hook.
func (t *Transport) inFlightDirectSends() int {
	return int(atomic.LoadInt32(&t.inFlight))
}
