package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"dchome/internal/api"
	"dchome/internal/control"
	"dchome/internal/db"
	"dchome/internal/logs"
	"dchome/internal/repo"
	"dchome/internal/syncsvc"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	logs.Discard()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	d, err := db.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))

	r := mux.NewRouter()
	cmds := repo.NewCommandStore(d)
	api.RegisterRoutes(r, syncsvc.New(repo.NewTelemetryStore(d), cmds, syncsvc.Options{}), control.NewGateway(cmds), "home")
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		_ = db.Close(d)
	})
	return srv
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.org", time.Second)
	assert.Error(t, err)
	_, err = New("http://127.0.0.1:8080/", time.Second)
	assert.NoError(t, err)
}

func TestClient_RoundTrip(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	for _, opts := range [][]Option{nil, {WithCBOR()}} {
		c, err := New(srv.URL, 2*time.Second, opts...)
		require.NoError(t, err)

		_, err = c.SetOutput(ctx, "home", "K1", "ON")
		require.NoError(t, err)
		_, err = c.SetMode(ctx, "home", "AUTO")
		require.NoError(t, err)

		cmd, err := c.Pull(ctx, "home")
		require.NoError(t, err)
		assert.Equal(t, "AUTO", cmd.Mode)
		assert.Equal(t, "ON", cmd.K1)

		ack, err := c.Push(ctx, url.Values{"id": {"home"}, "k1": {"ON"}, "power_k1": {"6"}, "total_power": {"6"}})
		require.NoError(t, err)
		assert.Equal(t, "success", ack.Status)

		snap, err := c.Snapshot(ctx, "home")
		require.NoError(t, err)
		assert.Equal(t, "success", snap.Status)
		assert.Equal(t, "ON", snap.Devices["K1"])
		assert.Equal(t, 6.0, snap.Power["K1"])
		assert.Equal(t, "AUTO", snap.Mode)

		h, err := c.History(ctx, "home", 1)
		require.NoError(t, err)
		assert.Equal(t, 1, h.Count)
	}
}

func TestClient_HistoryEscapesDeviceID(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c, err := New(srv.URL, 2*time.Second)
	require.NoError(t, err)

	_, err = c.Push(ctx, url.Values{"id": {"site/a?1"}, "battery_soc": {"42"}})
	require.NoError(t, err)

	h, err := c.History(ctx, "site/a?1", 0)
	require.NoError(t, err)
	assert.Equal(t, "site/a?1", h.DeviceID)
	require.Equal(t, 1, h.Count)
	assert.Equal(t, 42.0, h.Items[0].BatterySOC)
}

func TestClient_StatusError(t *testing.T) {
	srv := newServer(t)
	c, err := New(srv.URL, 2*time.Second)
	require.NoError(t, err)

	_, err = c.Push(context.Background(), url.Values{"mode": {"AUTO"}})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "missing_required_field", se.Body.Code)

	_, err = c.SetOutput(context.Background(), "home", "USB", "OFF")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "invalid_argument", se.Body.Code)
}

func TestClient_SnapshotNoData(t *testing.T) {
	srv := newServer(t)
	c, err := New(srv.URL, 2*time.Second)
	require.NoError(t, err)

	snap, err := c.Snapshot(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "error", snap.Status)
	assert.False(t, snap.IsConnected)
	assert.Nil(t, snap.ConnectionDelay)
}
