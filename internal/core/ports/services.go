package ports

import (
	"context"
	"time"

	"camx/internal/core/domain"
)

type DirectoryService interface {
	// RegisterAnnouncement applies one announce datagram to the directory.
	RegisterAnnouncement(ctx context.Context, announce domain.DiscoveryDevice) (*domain.Device, error)
	// Snapshot returns the current active-device list with an RFC3339 timestamp.
	Snapshot(ctx context.Context) (domain.NetworkScanResult, error)
	GetDevice(ctx context.Context, deviceID domain.DeviceID) (*domain.Device, error)
	MarkInactive(ctx context.Context, id int) (*domain.Device, error)
	// SweepStale demotes devices whose lastSeen is older than ttl. Returns
	// the number of devices marked inactive.
	SweepStale(ctx context.Context, ttl time.Duration) (int, error)
}

type HistoryService interface {
	RecordStart(ctx context.Context, deviceID domain.DeviceID, clientID domain.ClientID) (*domain.ConnectionRecord, error)
	RecordEnd(ctx context.Context, id int, successful bool, errorMessage string) (*domain.ConnectionRecord, error)
	ForDevice(ctx context.Context, deviceID domain.DeviceID, limit int) ([]*domain.ConnectionRecord, error)
}

// NetworkScanner is the discovery engine as seen by the relay and the HTTP
// surface: it can broadcast a scan and report the server's LAN address.
type NetworkScanner interface {
	TriggerScan() error
	LocalIP() string
}

// SignalBroadcaster is the relay as seen by the discovery engine: a way to
// push a message to every connected session.
type SignalBroadcaster interface {
	Broadcast(msg domain.SignalMessage)
}
