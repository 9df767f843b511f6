package domain

import "time"

// DeviceID is the stable identifier a device reports about itself. It is
// unique across the directory; the numeric Device.ID is a surrogate assigned
// on first registration.
type DeviceID string

// ClientID identifies one live WebSocket session on the relay.
type ClientID string

type Device struct {
	ID        int       `json:"id"`
	DeviceID  DeviceID  `json:"deviceId"`
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Platform  string    `json:"platform"`
	IPAddress string    `json:"ipAddress"`
	Port      string    `json:"port"`
	IsActive  bool      `json:"isActive"`
	LastSeen  time.Time `json:"lastSeen"`
}
