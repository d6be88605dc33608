package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// sessionCounts holds the six per-session values backing the collector,
// mirroring the per-connection entry sockstats' TCPInfoCollector keeps for
// each tracked socket.
type sessionCounts struct {
	packetsSent        uint64
	packetsResent      uint64
	acksReceived       uint64
	retries            uint64
	bytesTransferred   uint64
	windowOccupancy    uint64
}

// PrometheusRecorder is a Recorder that also implements prometheus.Collector,
// exposing reliudp_packets_sent_total, reliudp_packets_resent_total,
// reliudp_acks_received_total, reliudp_retries_total,
// reliudp_bytes_transferred_total and reliudp_window_occupancy, each labeled
// by session_id.
type PrometheusRecorder struct {
	mu       sync.Mutex
	sessions map[string]*sessionCounts

	packetsSentDesc      *prometheus.Desc
	packetsResentDesc    *prometheus.Desc
	acksReceivedDesc     *prometheus.Desc
	retriesDesc          *prometheus.Desc
	bytesTransferredDesc *prometheus.Desc
	windowOccupancyDesc  *prometheus.Desc
}

// NewPrometheusRecorder constructs a Recorder ready to be passed to
// prometheus.Registry.MustRegister.
func NewPrometheusRecorder() *PrometheusRecorder {
	labels := []string{"session_id"}
	return &PrometheusRecorder{
		sessions: make(map[string]*sessionCounts),
		packetsSentDesc: prometheus.NewDesc(
			"reliudp_packets_sent_total", "Total data packets sent.", labels, nil),
		packetsResentDesc: prometheus.NewDesc(
			"reliudp_packets_resent_total", "Total data packets retransmitted.", labels, nil),
		acksReceivedDesc: prometheus.NewDesc(
			"reliudp_acks_received_total", "Total cumulative acks received.", labels, nil),
		retriesDesc: prometheus.NewDesc(
			"reliudp_retries_total", "Total timeout-triggered retry rounds.", labels, nil),
		bytesTransferredDesc: prometheus.NewDesc(
			"reliudp_bytes_transferred_total", "Total payload bytes transferred.", labels, nil),
		windowOccupancyDesc: prometheus.NewDesc(
			"reliudp_window_occupancy", "Current count of unacknowledged in-flight packets.", labels, nil),
	}
}

func (p *PrometheusRecorder) IncPacketsSent(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryLocked(sessionID).packetsSent++
}

func (p *PrometheusRecorder) IncPacketsResent(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryLocked(sessionID).packetsResent++
}

func (p *PrometheusRecorder) IncAcksReceived(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryLocked(sessionID).acksReceived++
}

func (p *PrometheusRecorder) IncRetries(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryLocked(sessionID).retries++
}

func (p *PrometheusRecorder) AddBytesTransferred(sessionID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryLocked(sessionID).bytesTransferred += uint64(n)
}

func (p *PrometheusRecorder) SetWindowOccupancy(sessionID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entryLocked(sessionID).windowOccupancy = uint64(n)
}

// entryLocked must be called with p.mu held.
func (p *PrometheusRecorder) entryLocked(sessionID string) *sessionCounts {
	e, ok := p.sessions[sessionID]
	if !ok {
		e = &sessionCounts{}
		p.sessions[sessionID] = e
	}
	return e
}

// Describe implements prometheus.Collector.
func (p *PrometheusRecorder) Describe(descs chan<- *prometheus.Desc) {
	descs <- p.packetsSentDesc
	descs <- p.packetsResentDesc
	descs <- p.acksReceivedDesc
	descs <- p.retriesDesc
	descs <- p.bytesTransferredDesc
	descs <- p.windowOccupancyDesc
}

// Collect implements prometheus.Collector, emitting one sample per tracked
// session for each of the six metrics.
func (p *PrometheusRecorder) Collect(ch chan<- prometheus.Metric) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sessionID, c := range p.sessions {
		ch <- prometheus.MustNewConstMetric(p.packetsSentDesc, prometheus.CounterValue, float64(c.packetsSent), sessionID)
		ch <- prometheus.MustNewConstMetric(p.packetsResentDesc, prometheus.CounterValue, float64(c.packetsResent), sessionID)
		ch <- prometheus.MustNewConstMetric(p.acksReceivedDesc, prometheus.CounterValue, float64(c.acksReceived), sessionID)
		ch <- prometheus.MustNewConstMetric(p.retriesDesc, prometheus.CounterValue, float64(c.retries), sessionID)
		ch <- prometheus.MustNewConstMetric(p.bytesTransferredDesc, prometheus.CounterValue, float64(c.bytesTransferred), sessionID)
		ch <- prometheus.MustNewConstMetric(p.windowOccupancyDesc, prometheus.GaugeValue, float64(c.windowOccupancy), sessionID)
	}
}

var _ Recorder = (*PrometheusRecorder)(nil)
var _ prometheus.Collector = (*PrometheusRecorder)(nil)
