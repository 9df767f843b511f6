package discovery

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"camx/internal/core/domain"
	"camx/internal/core/services"
	"camx/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBroadcaster records every message the engine pushes at the relay.
type fakeBroadcaster struct {
	messages chan domain.SignalMessage
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{messages: make(chan domain.SignalMessage, 16)}
}

func (f *fakeBroadcaster) Broadcast(msg domain.SignalMessage) {
	f.messages <- msg
}

func startTestEngine(t *testing.T) (*Engine, *fakeBroadcaster) {
	t.Helper()

	logger := zap.NewNop().Sugar()
	directory := services.NewDirectoryService(memory.NewMemoryDeviceRepository(), logger)

	engine := NewEngine(Config{
		Port:             0,
		SubnetMask:       "255.255.255.0",
		BroadcastAddress: "127.0.0.1",
		ServerName:       "CamX Server",
		AdvertisePort:    "5000",
	}, directory, nil, logger)

	broadcaster := newFakeBroadcaster()
	engine.SetBroadcaster(broadcaster)

	require.NoError(t, engine.Start())
	t.Cleanup(engine.Stop)

	return engine, broadcaster
}

func dialEngine(t *testing.T, engine *Engine) *net.UDPConn {
	t.Helper()

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func engineAddr(engine *Engine) *net.UDPAddr {
	port := engine.Addr().(*net.UDPAddr).Port
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func sendDatagram(t *testing.T, client *net.UDPConn, engine *Engine, payload []byte) {
	t.Helper()

	_, err := client.WriteToUDP(payload, engineAddr(engine))
	require.NoError(t, err)
}

func readDatagram(t *testing.T, client *net.UDPConn) domain.DiscoveryMessage {
	t.Helper()

	buf := make([]byte, 2048)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := client.ReadFromUDP(buf)
	require.NoError(t, err)

	var msg domain.DiscoveryMessage
	require.NoError(t, json.Unmarshal(buf[:n], &msg))
	return msg
}

func announcePayload(t *testing.T, id, ip, port string) []byte {
	t.Helper()

	data, err := json.Marshal(domain.DiscoveryMessage{
		Action: domain.ActionAnnounce,
		Device: domain.DiscoveryDevice{
			ID:        id,
			Name:      "Phone " + id,
			Model:     "Pixel 7",
			Platform:  "android",
			IPAddress: ip,
			Port:      port,
		},
	})
	require.NoError(t, err)
	return data
}

func TestAnnounce_AcknowledgedAndDirectoryUpdated(t *testing.T) {
	engine, broadcaster := startTestEngine(t)
	client := dialEngine(t, engine)

	sendDatagram(t, client, engine, announcePayload(t, "dev1", "10.0.0.5", "4747"))

	// Exactly one unicast acknowledge back to the observed source address
	ack := readDatagram(t, client)
	assert.Equal(t, domain.ActionAcknowledge, ack.Action)
	assert.Equal(t, domain.ServerSender, ack.Device.ID)
	assert.Equal(t, "CamX Server", ack.Device.Name)

	// Every connected relay client gets the refreshed snapshot
	select {
	case msg := <-broadcaster.messages:
		assert.Equal(t, domain.MessageDiscoveryResponse, msg.Type)
		assert.Equal(t, domain.ClientID(domain.ServerSender), msg.From)

		var result domain.NetworkScanResult
		require.NoError(t, json.Unmarshal(msg.Payload, &result))
		require.Len(t, result.Devices, 1)
		assert.Equal(t, domain.DeviceID("dev1"), result.Devices[0].DeviceID)
		assert.Equal(t, "10.0.0.5", result.Devices[0].IPAddress)
		assert.Equal(t, "4747", result.Devices[0].Port)
		assert.NotEmpty(t, result.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a discovery-response push after announce")
	}
}

func TestAnnounce_RepeatUpdatesInsteadOfDuplicating(t *testing.T) {
	engine, broadcaster := startTestEngine(t)
	client := dialEngine(t, engine)

	sendDatagram(t, client, engine, announcePayload(t, "dev1", "10.0.0.5", "4747"))
	readDatagram(t, client)
	<-broadcaster.messages

	sendDatagram(t, client, engine, announcePayload(t, "dev1", "10.0.0.9", "4848"))
	readDatagram(t, client)

	select {
	case msg := <-broadcaster.messages:
		var result domain.NetworkScanResult
		require.NoError(t, json.Unmarshal(msg.Payload, &result))
		require.Len(t, result.Devices, 1, "same deviceId must stay a single directory entry")
		assert.Equal(t, "10.0.0.9", result.Devices[0].IPAddress)
		assert.Equal(t, "4848", result.Devices[0].Port)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a discovery-response push after re-announce")
	}
}

func TestMalformedDatagram_DoesNotKillTheLoop(t *testing.T) {
	engine, _ := startTestEngine(t)
	client := dialEngine(t, engine)

	sendDatagram(t, client, engine, []byte("{not json"))
	sendDatagram(t, client, engine, []byte(`{"action":"sideload","device":{}}`))

	// A valid announce afterwards is still served
	sendDatagram(t, client, engine, announcePayload(t, "dev1", "10.0.0.5", "4747"))
	ack := readDatagram(t, client)
	assert.Equal(t, domain.ActionAcknowledge, ack.Action)
}

func TestScanDatagram_IsIgnored(t *testing.T) {
	engine, broadcaster := startTestEngine(t)
	client := dialEngine(t, engine)

	scan, err := json.Marshal(domain.DiscoveryMessage{
		Action: domain.ActionScan,
		Device: domain.DiscoveryDevice{ID: domain.ServerSender, Name: "CamX Server", IPAddress: "127.0.0.1", Port: "5000"},
	})
	require.NoError(t, err)
	sendDatagram(t, client, engine, scan)

	select {
	case msg := <-broadcaster.messages:
		t.Fatalf("scan must not trigger a snapshot push, got %s", msg.Type)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTriggerScan_BroadcastsServerIdentity(t *testing.T) {
	// Receiver standing in for the subnet broadcast address
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer receiver.Close()

	logger := zap.NewNop().Sugar()
	directory := services.NewDirectoryService(memory.NewMemoryDeviceRepository(), logger)

	engine := NewEngine(Config{
		Port:             0,
		SubnetMask:       "255.255.255.0",
		BroadcastAddress: receiver.LocalAddr().String(),
		ServerName:       "CamX Server",
		AdvertisePort:    "5000",
	}, directory, nil, logger)
	require.NoError(t, engine.Start())
	defer engine.Stop()

	require.NoError(t, engine.TriggerScan())

	buf := make([]byte, 2048)
	require.NoError(t, receiver.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := receiver.ReadFromUDP(buf)
	require.NoError(t, err)

	var msg domain.DiscoveryMessage
	require.NoError(t, json.Unmarshal(buf[:n], &msg))
	assert.Equal(t, domain.ActionScan, msg.Action)
	assert.Equal(t, domain.ServerSender, msg.Device.ID)
	assert.Equal(t, "5000", msg.Device.Port)
	assert.NotEmpty(t, msg.Device.IPAddress)
}

func TestAnnounce_MissingAddressFallsBackToSource(t *testing.T) {
	engine, broadcaster := startTestEngine(t)
	client := dialEngine(t, engine)

	data, err := json.Marshal(domain.DiscoveryMessage{
		Action: domain.ActionAnnounce,
		Device: domain.DiscoveryDevice{ID: "dev1", Name: "Phone", Port: "4747"},
	})
	require.NoError(t, err)
	sendDatagram(t, client, engine, data)
	readDatagram(t, client)

	select {
	case msg := <-broadcaster.messages:
		var result domain.NetworkScanResult
		require.NoError(t, json.Unmarshal(msg.Payload, &result))
		require.Len(t, result.Devices, 1)
		assert.Equal(t, "127.0.0.1", result.Devices[0].IPAddress)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a discovery-response push")
	}
}
