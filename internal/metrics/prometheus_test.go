package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func collectMetric(t *testing.T, p *PrometheusRecorder, name, sessionID string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 64)
	p.Collect(ch)
	close(ch)
	for m := range ch {
		var out dto.Metric
		if err := m.Write(&out); err != nil {
			t.Fatalf("Write: %v", err)
		}
		for _, l := range out.Label {
			if l.GetName() == "session_id" && l.GetValue() == sessionID {
				if stringContains(m.Desc().String(), name) {
					return &out
				}
			}
		}
	}
	return nil
}

func stringContains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestPrometheusRecorderCountersIncrement(t *testing.T) {
	p := NewPrometheusRecorder()
	p.IncPacketsSent("sess1")
	p.IncPacketsSent("sess1")
	p.IncPacketsResent("sess1")
	p.IncAcksReceived("sess1")
	p.IncRetries("sess1")
	p.AddBytesTransferred("sess1", 4096)
	p.SetWindowOccupancy("sess1", 3)

	m := collectMetric(t, p, "reliudp_packets_sent_total", "sess1")
	if m == nil || m.GetCounter().GetValue() != 2 {
		t.Fatalf("expected packets_sent_total=2, got %+v", m)
	}
}

func TestPrometheusRecorderTracksMultipleSessions(t *testing.T) {
	p := NewPrometheusRecorder()
	p.IncPacketsSent("a")
	p.IncPacketsSent("b")
	p.IncPacketsSent("b")

	ma := collectMetric(t, p, "reliudp_packets_sent_total", "a")
	mb := collectMetric(t, p, "reliudp_packets_sent_total", "b")
	if ma == nil || ma.GetCounter().GetValue() != 1 {
		t.Fatalf("expected session a to have 1 packet sent, got %+v", ma)
	}
	if mb == nil || mb.GetCounter().GetValue() != 2 {
		t.Fatalf("expected session b to have 2 packets sent, got %+v", mb)
	}
}

func TestNoOpRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoOp{}
	r.IncPacketsSent("x")
	r.IncPacketsResent("x")
	r.IncAcksReceived("x")
	r.IncRetries("x")
	r.AddBytesTransferred("x", 10)
	r.SetWindowOccupancy("x", 1)
}
