package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"tgstate/internal/metrics"
)

func TestStore_CountsWrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewStore(reg)

	m.StoreWritten("state", 24)
	m.StoreWritten("state", 24)
	m.StoreWritten("auth", 300)
	m.FlushSkipped("secret")

	n, err := testutil.GatherAndCount(reg, "tgstate_store_writes_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n, "one series per store label")
}

func TestServer_CountsRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewServer(reg)
	m.Request("send_code", "ok")

	n, err := testutil.GatherAndCount(reg, "tgstate_authd_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
