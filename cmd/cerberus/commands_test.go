package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/logger"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/server"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/supervisor"
)

func startDaemon(t *testing.T) (*supervisor.Registry, *APIClient) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg, err := supervisor.New(supervisor.Options{Log: logger.Options{
		Out:         io.Discard,
		Err:         io.Discard,
		Diagnostics: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}})
	require.NoError(t, err)
	require.NoError(t, reg.Bootstrap())
	reg.Register(&service.Func{ServiceKey: "NET", ServiceName: "NetworkService"})

	ts := httptest.NewServer(server.NewRouter(reg, "/api").Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = reg.Shutdown()
	})
	return reg, NewAPIClient(ts.URL+"/api", time.Second)
}

func TestNewAPIClientDefaults(t *testing.T) {
	c := NewAPIClient("", 0)
	assert.Equal(t, "http://localhost:8080/api", c.baseURL)
	assert.Equal(t, 10*time.Second, c.client.Timeout)

	c = NewAPIClient("http://example.com/api", 5*time.Second)
	assert.Equal(t, "http://example.com/api", c.baseURL)
	assert.Equal(t, 5*time.Second, c.client.Timeout)
}

func TestStatusStartStop(t *testing.T) {
	reg, c := startDaemon(t)
	var out bytes.Buffer

	require.NoError(t, Status(&out, c, ""))
	assert.Contains(t, out.String(), "MAIN")
	assert.Contains(t, out.String(), "NetworkService")
	assert.Contains(t, out.String(), "INACTIVE")

	out.Reset()
	require.NoError(t, Start(&out, c, "NET", false))
	assert.Equal(t, "Service NET is now started\n", out.String())
	assert.True(t, reg.IsRunning("NET"))

	err := Start(&out, c, "NET", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error")

	out.Reset()
	require.NoError(t, Status(&out, c, "NET"))
	assert.Contains(t, out.String(), "ACTIVE")
	assert.NotContains(t, out.String(), "MAIN")

	out.Reset()
	require.NoError(t, Stop(&out, c, "NET", false, true))
	assert.Equal(t, "Service NET is now stopped (force stop)\n", out.String())
	assert.False(t, reg.IsRunning("NET"))

	err = Status(&out, c, "NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOPE")
}

func TestStartAll(t *testing.T) {
	reg, c := startDaemon(t)
	var out bytes.Buffer
	require.NoError(t, Start(&out, c, "", true))
	assert.True(t, reg.IsRunning("NET"))
	assert.Equal(t, "Started all services\n", out.String())
}

func TestClientUnreachable(t *testing.T) {
	c := NewAPIClient("http://127.0.0.1:1/api", 200*time.Millisecond)
	_, err := c.Services()
	assert.Error(t, err)
}
