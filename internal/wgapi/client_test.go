package wgapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithHost("test-app", srv.URL)
}

func TestFetchAccountStats(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wotb/account/info/", r.URL.Path)
		assert.Equal(t, "test-app", r.URL.Query().Get("application_id"))
		assert.Equal(t, "521458531,521458532", r.URL.Query().Get("account_id"))
		w.Write([]byte(`{
			"status": "ok",
			"data": {
				"521458531": {"statistics": {"all": {"battles": 200, "wins": 110, "damage_dealt": 280000}}},
				"521458532": null
			}
		}`))
	})

	stats, err := c.FetchAccountStats(context.Background(), []model.AccountID{521458531, 521458532})
	require.NoError(t, err)
	require.Len(t, stats, 2)

	s := stats[521458531]
	require.NotNil(t, s)
	assert.Equal(t, 200, s.Battles)
	assert.InDelta(t, 55.0, s.WinRate, 1e-9)
	assert.InDelta(t, 1400.0, s.AvgDamage, 1e-9)

	assert.Nil(t, stats[521458532], "unknown accounts map to a nil entry")
}

func TestFetchAccountStatsEmptyBatch(t *testing.T) {
	c := NewClientWithHost("test-app", "http://unused.invalid")
	stats, err := c.FetchAccountStats(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestFetchAccountStatsBatchLimit(t *testing.T) {
	c := NewClientWithHost("test-app", "http://unused.invalid")
	ids := make([]model.AccountID, MaxBatchSize+1)
	for i := range ids {
		ids[i] = model.AccountID(600_000_000 + i)
	}
	_, err := c.FetchAccountStats(context.Background(), ids)
	assert.ErrorContains(t, err, "exceeds limit")
}

func TestFetchAccountStatsNoData(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": null}`))
	})

	stats, err := c.FetchAccountStats(context.Background(), []model.AccountID{521458531})
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestFetchVehicleStats(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wotb/tanks/stats/", r.URL.Path)
		assert.Equal(t, "521458531", r.URL.Query().Get("account_id"))
		w.Write([]byte(`{
			"status": "ok",
			"data": {
				"521458531": [
					{"tank_id": 1, "all": {"battles": 100, "wins": 60, "damage_dealt": 120000}},
					{"tank_id": 2, "all": {"battles": 50, "wins": 20, "damage_dealt": 40000}}
				]
			}
		}`))
	})

	entries, err := c.FetchVehicleStats(context.Background(), 521458531)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.VehicleID(1), entries[0].TankID)
	assert.Equal(t, 100, entries[0].Battles)

	s := entries[0].Stats()
	assert.InDelta(t, 60.0, s.WinRate, 1e-9)
	assert.InDelta(t, 1200.0, s.AvgDamage, 1e-9)
}

func TestFetchVehicleStatsEmptyTable(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "data": {"521458531": []}}`))
	})

	entries, err := c.FetchVehicleStats(context.Background(), 521458531)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestAPIErrorEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "error": {"code": 407, "message": "INVALID_APPLICATION_ID"}}`))
	})

	_, err := c.FetchAccountStats(context.Background(), []model.AccountID{521458531})
	assert.ErrorContains(t, err, "API error 407")
	assert.ErrorContains(t, err, "INVALID_APPLICATION_ID")
}

func TestRateLimited(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchAccountStats(context.Background(), []model.AccountID{521458531})
	assert.ErrorContains(t, err, "rate limited")
}

func TestUnexpectedStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := c.FetchAccountStats(context.Background(), []model.AccountID{521458531})
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestStatsForZeroBattles(t *testing.T) {
	s := ratioStats(0, 0, 0)
	assert.Equal(t, model.PlayerStats{}, s, "zero battles stays at the zero sentinel")
}
