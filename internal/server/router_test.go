package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/archive/sqlite"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/logger"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/supervisor"
)

func setupRouter(t *testing.T, arc archive.Archive) (*supervisor.Registry, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if arc == nil {
		a, err := sqlite.New(filepath.Join(t.TempDir(), "logs.db"))
		require.NoError(t, err)
		arc = a
	}
	reg, err := supervisor.New(supervisor.Options{
		Log: logger.Options{
			Out:         io.Discard,
			Err:         io.Discard,
			Archive:     arc,
			Diagnostics: slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	})
	require.NoError(t, err)
	require.NoError(t, reg.Bootstrap())
	t.Cleanup(func() { _ = reg.Shutdown() })
	return reg, NewRouter(reg, "/api").Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"/":       "",
		"api":     "/api",
		"/api/":   "/api",
		" /x/y/ ": "/x/y",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeBase(in), in)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(&service.NotFoundError{By: "key", Value: "X"}))
	assert.Equal(t, http.StatusConflict, statusFor(&service.StateError{Key: "X"}))
	assert.Equal(t, http.StatusNotImplemented, statusFor(archive.ErrUnsupported))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestListAndGet(t *testing.T) {
	reg, h := setupRouter(t, nil)
	reg.Register(&service.Func{ServiceKey: "NET", ServiceName: "NetworkService"})

	rec := doReq(t, h, http.MethodGet, "/api/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]Status](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "MAIN", list[0].Key)
	assert.True(t, list[0].Running)
	assert.NotEmpty(t, list[0].Workers)
	assert.Equal(t, "NET", list[1].Key)
	assert.False(t, list[1].Running)
	assert.Equal(t, int64(-1), list[1].OnlineTime)

	rec = doReq(t, h, http.MethodGet, "/api/services/NET", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NetworkService", decode[Status](t, rec).Name)

	rec = doReq(t, h, http.MethodGet, "/api/services/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusByName(t *testing.T) {
	reg, h := setupRouter(t, nil)
	reg.Register(&service.Func{ServiceKey: "NET", ServiceName: "NetworkService"})

	rec := doReq(t, h, http.MethodGet, "/api/status?name=network", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NET", decode[Status](t, rec).Key)

	rec = doReq(t, h, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doReq(t, h, http.MethodGet, "/api/status?name=zzz", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartStopForceStop(t *testing.T) {
	reg, h := setupRouter(t, nil)
	stops := 0
	reg.Register(&service.Func{ServiceKey: "NET", OnStop: func() error { stops++; return nil }})

	rec := doReq(t, h, http.MethodPost, "/api/services/NET/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[Status](t, rec)
	assert.True(t, st.Running)
	assert.Greater(t, st.OnlineTime, int64(0))

	rec = doReq(t, h, http.MethodPost, "/api/services/NET/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doReq(t, h, http.MethodPost, "/api/services/NET/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, reg.IsRunning("NET"))

	rec = doReq(t, h, http.MethodPost, "/api/services/NET/stop", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doReq(t, h, http.MethodPost, "/api/services/NET/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doReq(t, h, http.MethodPost, "/api/services/NET/force-stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, reg.IsRunning("NET"))
	assert.Equal(t, 2, stops)

	rec = doReq(t, h, http.MethodPost, "/api/services/NOPE/start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAllStopAll(t *testing.T) {
	reg, h := setupRouter(t, nil)
	reg.Register(&service.Func{ServiceKey: "A"})
	reg.Register(&service.Func{ServiceKey: "B"})

	rec := doReq(t, h, http.MethodPost, "/api/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[okResp](t, rec).OK)
	assert.True(t, reg.IsRunning("A"))
	assert.True(t, reg.IsRunning("B"))

	rec = doReq(t, h, http.MethodPost, "/api/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, reg.IsRunning("A"))
	assert.False(t, reg.IsRunning(supervisor.MainKey))
}

func TestLogsFlushQueryErase(t *testing.T) {
	reg, h := setupRouter(t, nil)
	reg.Logger().Info("hello")
	reg.Logger().Warning("careful")

	rec := doReq(t, h, http.MethodPost, "/api/logs/flush", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doReq(t, h, http.MethodGet, "/api/logs?service=MAIN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode[[]record.Record](t, rec)
	var msgs []string
	for _, r := range recs {
		msgs = append(msgs, r.Message)
	}
	assert.Contains(t, msgs, "hello")
	assert.Contains(t, msgs, "careful")

	rec = doReq(t, h, http.MethodGet, "/api/logs?level=WARNING", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	recs = decode[[]record.Record](t, rec)
	require.Len(t, recs, 1)
	assert.Equal(t, "careful", recs[0].Message)

	rec = doReq(t, h, http.MethodDelete, "/api/logs?level=WARNING", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[eraseResp](t, rec).Erased)

	rec = doReq(t, h, http.MethodGet, "/api/logs?level=WARNING", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]record.Record](t, rec))
}

func TestLogsBadQuery(t *testing.T) {
	_, h := setupRouter(t, nil)
	rec := doReq(t, h, http.MethodGet, "/api/logs?level=LOUD", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doReq(t, h, http.MethodGet, "/api/logs?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doReq(t, h, http.MethodDelete, "/api/logs?until=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type writeOnly struct{ archive.Nop }

func (writeOnly) Retrieve(context.Context, record.Query) ([]record.Record, error) {
	return nil, archive.ErrUnsupported
}

func TestLogsUnsupportedArchive(t *testing.T) {
	_, h := setupRouter(t, writeOnly{})
	rec := doReq(t, h, http.MethodGet, "/api/logs", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Contains(t, decode[errorResp](t, rec).Error, "not supported")
}
