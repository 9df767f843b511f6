package domain

import "encoding/json"

// Signal message types carried over the relay WebSocket.
const (
	MessageOffer             = "offer"
	MessageAnswer            = "answer"
	MessageICECandidate      = "ice-candidate"
	MessageDisconnect        = "disconnect"
	MessageDiscovery         = "discovery"
	MessageDiscoveryResponse = "discovery-response"
)

// Discovery datagram actions.
const (
	ActionScan        = "scan"
	ActionAnnounce    = "announce"
	ActionAcknowledge = "acknowledge"
)

// ServerSender is the synthetic identity the server uses in messages it
// originates itself (scan/acknowledge datagrams, discovery-response pushes).
const ServerSender = "server"

// SignalMessage is the envelope for all relay traffic. Payload is opaque to
// the relay; From is always rewritten server-side before forwarding.
type SignalMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	From    ClientID        `json:"from,omitempty"`
	To      ClientID        `json:"to,omitempty"`
}

// DiscoveryDevice is the identity block carried in discovery datagrams. For
// announce it is the reporting device; for scan/acknowledge it is the server.
type DiscoveryDevice struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	Platform  string `json:"platform,omitempty"`
	IPAddress string `json:"ipAddress"`
	Port      string `json:"port"`
}

// DiscoveryMessage is the UDP wire envelope.
type DiscoveryMessage struct {
	Action string          `json:"action"`
	Device DiscoveryDevice `json:"device"`
}

// NetworkScanResult is the payload of every discovery-response message.
type NetworkScanResult struct {
	Devices   []*Device `json:"devices"`
	Timestamp string    `json:"timestamp"`
}

// NewDiscoveryResponse wraps a scan result into a relay envelope sent with
// the server identity.
func NewDiscoveryResponse(result NetworkScanResult) (SignalMessage, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return SignalMessage{}, err
	}
	return SignalMessage{
		Type:    MessageDiscoveryResponse,
		Payload: payload,
		From:    ServerSender,
	}, nil
}

// NewDisconnectNotice is the synthetic message fanned out when a session
// closes, so peers can retire any negotiation with the departed client.
func NewDisconnectNotice(clientID ClientID) SignalMessage {
	return SignalMessage{
		Type:    MessageDisconnect,
		Payload: json.RawMessage(`{}`),
		From:    clientID,
	}
}
