package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEventsTotalLabels(t *testing.T) {
	c := EventsTotal.WithLabelValues("test", "deduped", "STALE")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestStorageErrorsLabels(t *testing.T) {
	c := StorageErrors.WithLabelValues("insert")
	before := testutil.ToFloat64(c)
	c.Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(c))
}
