package gatewayhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Position_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/devices/dev-1/position", r.URL.Path)
		require.Equal(t, "k", r.URL.Query().Get("apiKey"))
		heading := 90.0
		_ = json.NewEncoder(w).Encode(positionResp{
			Latitude:   -1.2921,
			Longitude:  36.8219,
			Heading:    &heading,
			RecordedAt: time.Now().UTC(),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "dev-1", time.Second, 5*time.Second)
	fix, err := c.Position(context.Background())
	require.NoError(t, err)
	require.InDelta(t, -1.2921, fix.Latitude, 1e-9)
	require.InDelta(t, 36.8219, fix.Longitude, 1e-9)
	require.NotNil(t, fix.Heading)
}

func TestClient_Position_StaleFixRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(positionResp{
			Latitude:   1,
			Longitude:  2,
			RecordedAt: time.Now().UTC().Add(-time.Minute),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "dev-1", time.Second, 5*time.Second)
	_, err := c.Position(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "stale fix")
}

func TestClient_Position_HTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "", "dev-404", time.Second, time.Second)
	_, err := c.Position(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestClient_Watch_EmitsAndStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(positionResp{
			Latitude:   3,
			Longitude:  4,
			RecordedAt: time.Now().UTC(),
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "dev-1", 10*time.Millisecond, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Watch(ctx)
	require.NoError(t, err)

	select {
	case fix := <-ch:
		require.InDelta(t, 3.0, fix.Latitude, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for fix")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
