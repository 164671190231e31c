package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngine(reg)

	m.Sweeps.WithLabelValues("alert").Inc()
	m.AlertsTriggered.Add(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sweeps.WithLabelValues("alert")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AlertsTriggered))
	assert.Panics(t, func() { NewEngine(reg) })
}

func TestNotified(t *testing.T) {
	m := NewUnregistered()

	m.Notified("watch", nil)
	m.Notified("watch", nil)
	m.Notified("watch", errors.New("blocked"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Notifications.WithLabelValues("watch", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("watch", "failed")))
}
