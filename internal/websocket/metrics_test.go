package websocket

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventSeries(t *testing.T) map[string]float64 {
	t.Helper()
	registry := prometheus.NewRegistry()
	registry.MustRegister(wsEvents)
	families, err := registry.Gather()
	require.NoError(t, err)

	series := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "event" {
					series[pair.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	return series
}

func TestEventLabel(t *testing.T) {
	assert.Equal(t, "join", eventLabel("join"))
	assert.Equal(t, "code-change", eventLabel("code-change"))
	assert.Equal(t, "sync-code", eventLabel("sync-code"))
	assert.Equal(t, "unknown", eventLabel("shout"))
	assert.Equal(t, "unknown", eventLabel(""))
}

func TestUnknownEventsShareOneSeries(t *testing.T) {
	h := startHub(t)
	p := NewProtocol(h)
	conn := newMockConn("A")

	before := eventSeries(t)["unknown"]
	for i := 0; i < 500; i++ {
		p.Handle(conn, []byte(fmt.Sprintf(`{"event":"junk-%d","payload":{}}`, i)))
	}

	series := eventSeries(t)
	assert.Equal(t, float64(500), series["unknown"]-before)
	for label := range series {
		assert.Contains(t, []string{"join", "code-change", "sync-code", "unknown"}, label)
	}
}
