package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	clientsConnected prometheus.Gauge
	devicesActive    prometheus.Gauge

	messagesRelayed *prometheus.CounterVec
	messagesDropped *prometheus.CounterVec

	announcesReceived  prometheus.Counter
	acksSent           prometheus.Counter
	scansSent          prometheus.Counter
	malformedDatagrams prometheus.Counter
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		clientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camx_relay_clients_connected",
			Help: "Number of WebSocket sessions currently registered",
		}),

		devicesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "camx_directory_devices_active",
			Help: "Number of devices currently marked active",
		}),

		messagesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "camx_relay_messages_total",
			Help: "Signaling messages routed by the relay",
		}, []string{"type", "delivery"}),

		messagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "camx_relay_messages_dropped_total",
			Help: "Signaling messages dropped by the relay",
		}, []string{"reason"}),

		announcesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camx_discovery_announces_total",
			Help: "Announce datagrams received on the discovery socket",
		}),

		acksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camx_discovery_acks_total",
			Help: "Acknowledge datagrams sent back to announcing devices",
		}),

		scansSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camx_discovery_scans_total",
			Help: "Scan datagrams broadcast to the subnet",
		}),

		malformedDatagrams: promauto.NewCounter(prometheus.CounterOpts{
			Name: "camx_discovery_malformed_datagrams_total",
			Help: "Datagrams dropped because they could not be parsed",
		}),
	}
}

func (p *PrometheusCollector) RecordClientConnected() {
	if p == nil {
		return
	}
	p.clientsConnected.Inc()
}

func (p *PrometheusCollector) RecordClientDisconnected() {
	if p == nil {
		return
	}
	p.clientsConnected.Dec()
}

func (p *PrometheusCollector) RecordMessageRelayed(messageType, delivery string) {
	if p == nil {
		return
	}
	p.messagesRelayed.WithLabelValues(messageType, delivery).Inc()
}

func (p *PrometheusCollector) RecordMessageDropped(reason string) {
	if p == nil {
		return
	}
	p.messagesDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordAnnounce() {
	if p == nil {
		return
	}
	p.announcesReceived.Inc()
}

func (p *PrometheusCollector) RecordAckSent() {
	if p == nil {
		return
	}
	p.acksSent.Inc()
}

func (p *PrometheusCollector) RecordScanSent() {
	if p == nil {
		return
	}
	p.scansSent.Inc()
}

func (p *PrometheusCollector) RecordMalformedDatagram() {
	if p == nil {
		return
	}
	p.malformedDatagrams.Inc()
}

func (p *PrometheusCollector) SetActiveDevices(n int) {
	if p == nil {
		return
	}
	p.devicesActive.Set(float64(n))
}
