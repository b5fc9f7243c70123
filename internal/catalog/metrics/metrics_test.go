package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRegistered(t *testing.T) {
	SnapshotsReceived.WithLabelValues("metrics_test").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(SnapshotsReceived.WithLabelValues("metrics_test")))

	Degraded.WithLabelValues("metrics_test").Set(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(Degraded.WithLabelValues("metrics_test")))

	Recomputations.WithLabelValues("metrics_test", "snapshot").Add(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(Recomputations.WithLabelValues("metrics_test", "snapshot")))
}
