package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"
	"camx/internal/infrastructure/monitoring"
	"camx/pkg/tracing"
	"camx/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // LAN-only deployment, clients connect from phone browsers
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Config carries the relay's socket tuning. A zero MessagesPerSecond disables
// per-session rate limiting.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64

	MessagesPerSecond float64
	Burst             int
}

// session is one connected signaling client. gorilla connections allow a
// single concurrent writer, so every write goes through writeMu.
type session struct {
	id      domain.ClientID
	conn    *websocket.Conn
	writeMu sync.Mutex
	limiter *rate.Limiter
}

// Relay fans signaling messages between WebSocket clients. It never inspects
// payloads; it only rewrites the sender and routes by the envelope.
type Relay struct {
	directory ports.DirectoryService
	scanner   ports.NetworkScanner
	metrics   *monitoring.PrometheusCollector

	sessions map[domain.ClientID]*session
	mu       sync.RWMutex

	cfg    Config
	logger *zap.SugaredLogger
}

func NewRelay(cfg Config, directory ports.DirectoryService, scanner ports.NetworkScanner, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Relay {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Relay{
		directory: directory,
		scanner:   scanner,
		metrics:   metrics,
		sessions:  make(map[domain.ClientID]*session),
		cfg:       cfg,
		logger:    logger,
	}
}

// HandleWebSocket upgrades the request and serves the session until the
// socket closes. The client id is assigned server-side and is never taken
// from the client.
func (r *Relay) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Errorw("websocket upgrade failed", "error", err, "remote", req.RemoteAddr)
		return
	}
	defer conn.Close()

	sess := &session{
		id:   domain.ClientID(utils.GenerateClientID()),
		conn: conn,
	}
	if r.cfg.MessagesPerSecond > 0 {
		sess.limiter = rate.NewLimiter(rate.Limit(r.cfg.MessagesPerSecond), r.cfg.Burst)
	}

	r.register(sess)
	defer r.unregister(sess)

	r.logger.Infow("client connected", "client_id", sess.id, "remote", req.RemoteAddr)

	if r.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(r.cfg.MaxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(r.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(r.cfg.PongTimeout))
		return nil
	})

	// New clients see the directory right away, without asking
	r.sendSnapshot(req.Context(), sess)

	pingTicker := time.NewTicker(r.cfg.PingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan domain.SignalMessage, 10)
	errorChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go r.readPump(sess, messageChan, errorChan, done)

	for {
		select {
		case msg := <-messageChan:
			r.handleMessage(req.Context(), sess, msg)

		case <-pingTicker.C:
			sess.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			sess.writeMu.Unlock()
			if err != nil {
				r.logger.Infow("ping failed, closing session", "client_id", sess.id, "error", err)
				return
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				r.logger.Infow("read error", "client_id", sess.id, "error", err)
			}
			return
		}
	}
}

// readPump feeds decoded frames from one connection into messageChan. Bad
// JSON must not end the session, so frames are read raw and decoded here
// rather than with ReadJSON. Every send selects against done so the pump
// cannot outlive the session when the select loop in HandleWebSocket exits
// first, e.g. on a ping failure.
func (r *Relay) readPump(sess *session, messageChan chan<- domain.SignalMessage, errorChan chan<- error, done <-chan struct{}) {
	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			select {
			case errorChan <- err:
			case <-done:
			}
			return
		}
		sess.conn.SetReadDeadline(time.Now().Add(r.cfg.PongTimeout))

		var msg domain.SignalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			r.metrics.RecordMessageDropped("malformed")
			r.logger.Warnw("dropping malformed message", "client_id", sess.id, "error", err)
			continue
		}
		select {
		case messageChan <- msg:
		case <-done:
			return
		}
	}
}

// handleMessage routes one envelope. The sender field is always rewritten
// with the server-assigned id before any forwarding, so clients cannot
// impersonate each other.
func (r *Relay) handleMessage(ctx context.Context, sess *session, msg domain.SignalMessage) {
	if sess.limiter != nil && !sess.limiter.Allow() {
		r.metrics.RecordMessageDropped("rate_limited")
		r.logger.Warnw("rate limit exceeded, dropping message", "client_id", sess.id, "type", msg.Type)
		return
	}

	if msg.Type == "" {
		r.metrics.RecordMessageDropped("missing_type")
		r.logger.Warnw("dropping message without type", "client_id", sess.id)
		return
	}

	msg.From = sess.id

	ctx, span := tracing.TraceRelayMessage(ctx, msg.Type, string(sess.id))
	defer span.End()

	switch msg.Type {
	case domain.MessageDiscovery:
		r.handleDiscovery(ctx, sess)

	case domain.MessageOffer, domain.MessageAnswer, domain.MessageICECandidate, domain.MessageDisconnect:
		if msg.To != "" {
			r.sendTo(msg.To, msg)
			r.metrics.RecordMessageRelayed(msg.Type, "addressed")
		} else {
			r.broadcastExcept(sess.id, msg)
			r.metrics.RecordMessageRelayed(msg.Type, "broadcast")
		}

	default:
		r.metrics.RecordMessageDropped("unknown_type")
		r.logger.Warnw("dropping message of unknown type", "client_id", sess.id, "type", msg.Type)
	}
}

// handleDiscovery answers the asking client with the current snapshot and
// kicks off a network scan so late devices re-announce themselves.
func (r *Relay) handleDiscovery(ctx context.Context, sess *session) {
	r.sendSnapshot(ctx, sess)
	r.metrics.RecordMessageRelayed(domain.MessageDiscovery, "snapshot")

	if err := r.scanner.TriggerScan(); err != nil {
		r.logger.Warnw("scan broadcast failed", "client_id", sess.id, "error", err)
	}
}

func (r *Relay) sendSnapshot(ctx context.Context, sess *session) {
	result, err := r.directory.Snapshot(ctx)
	if err != nil {
		r.logger.Errorw("directory snapshot failed", "client_id", sess.id, "error", err)
		return
	}
	msg, err := domain.NewDiscoveryResponse(result)
	if err != nil {
		r.logger.Errorw("encoding snapshot failed", "client_id", sess.id, "error", err)
		return
	}
	if err := r.send(sess, msg); err != nil {
		r.logger.Infow("snapshot push failed", "client_id", sess.id, "error", err)
	}
}

// Broadcast delivers a server-originated message to every connected session.
// The discovery engine uses this to push refreshed snapshots after announces.
func (r *Relay) Broadcast(msg domain.SignalMessage) {
	for _, sess := range r.snapshotSessions() {
		if err := r.send(sess, msg); err != nil {
			r.logger.Infow("broadcast send failed", "client_id", sess.id, "error", err)
		}
	}
}

func (r *Relay) broadcastExcept(from domain.ClientID, msg domain.SignalMessage) {
	for _, sess := range r.snapshotSessions() {
		if sess.id == from {
			continue
		}
		if err := r.send(sess, msg); err != nil {
			r.logger.Infow("broadcast send failed", "client_id", sess.id, "error", err)
		}
	}
}

// sendTo delivers an addressed message. An unknown or already-closed target
// is a silent drop from the sender's point of view.
func (r *Relay) sendTo(target domain.ClientID, msg domain.SignalMessage) {
	r.mu.RLock()
	sess, ok := r.sessions[target]
	r.mu.RUnlock()

	if !ok {
		r.metrics.RecordMessageDropped("unknown_target")
		r.logger.Infow("target not connected, dropping message", "to", target, "type", msg.Type)
		return
	}
	if err := r.send(sess, msg); err != nil {
		r.metrics.RecordMessageDropped("write_failed")
		r.logger.Infow("addressed send failed", "to", target, "type", msg.Type, "error", err)
	}
}

func (r *Relay) send(sess *session, msg domain.SignalMessage) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	sess.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout))
	return sess.conn.WriteJSON(msg)
}

// snapshotSessions copies the session list so fanouts never hold the registry
// lock while writing to sockets.
func (r *Relay) snapshotSessions() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

func (r *Relay) register(sess *session) {
	r.mu.Lock()
	r.sessions[sess.id] = sess
	r.mu.Unlock()

	r.metrics.RecordClientConnected()
}

// unregister removes the session first, then tells everyone else, so the
// departing client never receives its own disconnect notice.
func (r *Relay) unregister(sess *session) {
	r.mu.Lock()
	delete(r.sessions, sess.id)
	r.mu.Unlock()

	r.metrics.RecordClientDisconnected()
	r.logger.Infow("client disconnected", "client_id", sess.id)

	r.broadcastExcept(sess.id, domain.NewDisconnectNotice(sess.id))
}

func (r *Relay) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
