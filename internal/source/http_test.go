package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSnapshots_Snapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"lastUpdateId":1027024,"bids":[["4.00000000","431.00000000"]],"asks":[["4.00000200","12.00000000"]]}`))
	}))
	defer srv.Close()

	snapshot, err := NewHTTPSnapshots(srv.URL + "/api/v3/depth?symbol=BTCUSDT").Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1027024), snapshot.LastUpdateID)
	require.Len(t, snapshot.Bids, 1)
	assert.Equal(t, "4", snapshot.Bids[0].Price.String())
	assert.Equal(t, "431", snapshot.Bids[0].Quantity.String())
	require.Len(t, snapshot.Asks, 1)
	assert.Equal(t, "4.000002", snapshot.Asks[0].Price.String())
}

func TestHTTPSnapshots_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPSnapshots(srv.URL).Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestHTTPSnapshots_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&HTTPSnapshots{URL: srv.URL}).Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
