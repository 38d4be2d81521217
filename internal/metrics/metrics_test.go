package metrics_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-session-host/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.Admission(metrics.AdmissionAccepted)
		m.RosterSize(1)
		m.Phase(2)
		m.KeepAlive(false, 1)
		m.UnknownClient("remove")
		m.Spawn("spawned")
	})
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Admission(metrics.AdmissionAccepted)
	m.Admission(metrics.AdmissionAccepted)
	m.Admission("capacity")
	m.RosterSize(2)
	m.KeepAlive(false, 3)

	count, err := testutil.GatherAndCount(reg, "session_host_admissions_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP session_host_roster_size Number of admitted non-host clients
# TYPE session_host_roster_size gauge
session_host_roster_size 2
`), "session_host_roster_size"))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP session_host_keep_alive_consecutive_failures Consecutive failed keep-alive rounds
# TYPE session_host_keep_alive_consecutive_failures gauge
session_host_keep_alive_consecutive_failures 3
`), "session_host_keep_alive_consecutive_failures"))
}
