package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/ports"
	"camx/internal/infrastructure/monitoring"
	"camx/pkg/netutil"
	"camx/pkg/tracing"

	"go.uber.org/zap"
)

const maxDatagramSize = 2048

// Config carries the discovery protocol settings.
type Config struct {
	Port       int
	SubnetMask string
	// BroadcastAddress overrides the computed subnet broadcast address.
	// Mostly useful for tests and unusual network layouts.
	BroadcastAddress string
	ServerName       string
	AdvertisePort    string
	DeviceTTL        time.Duration
	SweepInterval    time.Duration
}

// Engine owns the UDP discovery socket. It answers announce datagrams with a
// unicast acknowledge, records the device in the directory and pushes the
// refreshed snapshot to every relay client.
type Engine struct {
	directory ports.DirectoryService
	metrics   *monitoring.PrometheusCollector
	logger    *zap.SugaredLogger

	cfg      Config
	localIP  string
	identity domain.DiscoveryDevice

	conn          *net.UDPConn
	broadcastAddr *net.UDPAddr

	broadcaster ports.SignalBroadcaster
	mu          sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

func NewEngine(cfg Config, directory ports.DirectoryService, metrics *monitoring.PrometheusCollector, logger *zap.SugaredLogger) *Engine {
	localIP := netutil.LocalIPv4()

	return &Engine{
		directory: directory,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		localIP:   localIP,
		identity: domain.DiscoveryDevice{
			ID:        domain.ServerSender,
			Name:      cfg.ServerName,
			IPAddress: localIP,
			Port:      cfg.AdvertisePort,
		},
		done: make(chan struct{}),
	}
}

// SetBroadcaster wires the relay in. Until set, snapshot pushes are skipped.
func (e *Engine) SetBroadcaster(b ports.SignalBroadcaster) {
	e.mu.Lock()
	e.broadcaster = b
	e.mu.Unlock()
}

// Start binds the discovery socket and launches the receive loop.
func (e *Engine) Start() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: e.cfg.Port})
	if err != nil {
		return fmt.Errorf("failed to bind discovery socket on port %d: %w", e.cfg.Port, err)
	}
	e.conn = conn

	if err := e.resolveBroadcastAddr(); err != nil {
		conn.Close()
		return err
	}

	e.logger.Infow("discovery service listening",
		"addr", conn.LocalAddr().String(),
		"broadcast", e.broadcastAddr.String(),
	)

	e.wg.Add(1)
	go e.readLoop()

	if e.cfg.DeviceTTL > 0 {
		e.wg.Add(1)
		go e.sweepLoop()
	}

	return nil
}

// resolveBroadcastAddr computes where TriggerScan sends to. The override may
// carry its own port; otherwise scans go to the discovery port itself, which
// is what devices listen on.
func (e *Engine) resolveBroadcastAddr() error {
	port := e.cfg.Port
	if port == 0 {
		port = e.conn.LocalAddr().(*net.UDPAddr).Port
	}

	bcast := e.cfg.BroadcastAddress
	if bcast == "" {
		computed, err := netutil.BroadcastAddr(e.localIP, e.cfg.SubnetMask)
		if err != nil {
			return fmt.Errorf("failed to compute broadcast address: %w", err)
		}
		bcast = computed
	} else if host, portStr, err := net.SplitHostPort(bcast); err == nil {
		p, err := net.LookupPort("udp", portStr)
		if err != nil {
			return fmt.Errorf("invalid broadcast address port %q: %w", portStr, err)
		}
		bcast = host
		port = p
	}

	ip := net.ParseIP(bcast)
	if ip == nil {
		return fmt.Errorf("invalid broadcast address: %s", bcast)
	}

	e.broadcastAddr = &net.UDPAddr{IP: ip, Port: port}
	return nil
}

// Addr reports the bound discovery socket address.
func (e *Engine) Addr() net.Addr {
	return e.conn.LocalAddr()
}

// Stop closes the socket and waits for the loops to drain.
func (e *Engine) Stop() {
	close(e.done)
	if e.conn != nil {
		e.conn.Close()
	}
	e.wg.Wait()
}

// LocalIP reports the server's best-guess LAN-facing IPv4 address.
func (e *Engine) LocalIP() string {
	return e.localIP
}

// TriggerScan broadcasts a scan datagram prompting devices to announce.
// Send failures are returned to the caller; the receive loop is unaffected.
func (e *Engine) TriggerScan() error {
	msg := domain.DiscoveryMessage{
		Action: domain.ActionScan,
		Device: e.identity,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal scan message: %w", err)
	}

	if _, err := e.conn.WriteToUDP(data, e.broadcastAddr); err != nil {
		return fmt.Errorf("failed to broadcast scan: %w", err)
	}

	e.metrics.RecordScanSent()
	e.logger.Infow("scan broadcast sent", "addr", e.broadcastAddr.String())
	return nil
}

func (e *Engine) readLoop() {
	defer e.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-e.done:
				return
			default:
			}
			e.logger.Warnw("discovery socket read failed", "error", err)
			continue
		}

		e.handleDatagram(buf[:n], src)
	}
}

func (e *Engine) handleDatagram(data []byte, src *net.UDPAddr) {
	var msg domain.DiscoveryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		e.metrics.RecordMalformedDatagram()
		e.logger.Warnw("dropping malformed discovery datagram", "src", src.String(), "error", err)
		return
	}

	switch msg.Action {
	case domain.ActionAnnounce:
		e.handleAnnounce(msg.Device, src)

	case domain.ActionScan, domain.ActionAcknowledge:
		// Scans are what we send ourselves; either can loop back on the
		// broadcast address, so both are ignored.
		e.logger.Debugw("ignoring discovery datagram", "action", msg.Action, "src", src.String())

	default:
		e.metrics.RecordMalformedDatagram()
		e.logger.Warnw("dropping discovery datagram with unknown action",
			"action", msg.Action,
			"src", src.String(),
		)
	}
}

func (e *Engine) handleAnnounce(device domain.DiscoveryDevice, src *net.UDPAddr) {
	e.metrics.RecordAnnounce()

	ctx, span := tracing.TraceDiscovery(context.Background(), domain.ActionAnnounce, device.ID)
	defer span.End()

	if device.IPAddress == "" {
		device.IPAddress = src.IP.String()
	}

	if _, err := e.directory.RegisterAnnouncement(ctx, device); err != nil {
		tracing.RecordError(ctx, err)
		e.logger.Warnw("failed to register announce", "device_id", device.ID, "error", err)
		return
	}

	// Acknowledge to the observed source address, not the self-reported one.
	e.sendAck(src)
	e.pushSnapshot(ctx)
}

func (e *Engine) sendAck(src *net.UDPAddr) {
	ack := domain.DiscoveryMessage{
		Action: domain.ActionAcknowledge,
		Device: e.identity,
	}

	data, err := json.Marshal(ack)
	if err != nil {
		e.logger.Errorw("failed to marshal acknowledge", "error", err)
		return
	}

	if _, err := e.conn.WriteToUDP(data, src); err != nil {
		e.logger.Warnw("failed to send acknowledge", "dst", src.String(), "error", err)
		return
	}

	e.metrics.RecordAckSent()
}

func (e *Engine) pushSnapshot(ctx context.Context) {
	e.mu.RLock()
	broadcaster := e.broadcaster
	e.mu.RUnlock()

	if broadcaster == nil {
		return
	}

	result, err := e.directory.Snapshot(ctx)
	if err != nil {
		e.logger.Warnw("failed to build directory snapshot", "error", err)
		return
	}
	e.metrics.SetActiveDevices(len(result.Devices))

	msg, err := domain.NewDiscoveryResponse(result)
	if err != nil {
		e.logger.Errorw("failed to encode discovery response", "error", err)
		return
	}

	broadcaster.Broadcast(msg)
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			swept, err := e.directory.SweepStale(context.Background(), e.cfg.DeviceTTL)
			if err != nil {
				e.logger.Warnw("device sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				e.pushSnapshot(context.Background())
			}
		}
	}
}
