package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCreated("single", 1)
	m.RecordCreated("bulk", 3)
	m.RecordCreated("bulk", 0)
	m.RecordConflict("create")
	m.RecordBulkUpdate(true, nil)
	m.RecordBulkUpdate(false, errors.New("boom"))
	m.RecordBulkUpdate(false, nil)
	m.ObserveWrite("create", time.Now())
	m.RecordNotification(nil)
	m.RecordCacheRefresh(7, nil)
	m.RecordCacheRefresh(2, errors.New("redis down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.schedulesCreated.WithLabelValues("single")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.schedulesCreated.WithLabelValues("bulk")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflictsDetected.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bulkUpdates.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bulkUpdates.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bulkUpdates.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("ok")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.cachedMonitors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRefreshes.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordCreated("single", 1)
		m.RecordConflict("create")
		m.RecordBulkUpdate(false, nil)
		m.ObserveWrite("create", time.Now())
		m.RecordNotification(nil)
		m.RecordCacheRefresh(1, nil)
	})
}
