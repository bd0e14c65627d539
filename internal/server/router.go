package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/lifecycle"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/logger"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/record"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/service"
	"github.com/LateinCecer/Cerbeurs-Registry-Public/internal/supervisor"
)

// Router provides embeddable HTTP handlers for the registry.
// Endpoints:
//
//	GET    {basePath}/services                   list every registered service
//	GET    {basePath}/services/:key              status of one service
//	GET    {basePath}/status?name=...            status by name (exact, case-insensitive, substring)
//	POST   {basePath}/services/:key/start
//	POST   {basePath}/services/:key/stop
//	POST   {basePath}/services/:key/force-stop
//	POST   {basePath}/start                      start every service
//	POST   {basePath}/stop                       stop every service
//	GET    {basePath}/logs?service=&level=&since=&until=
//	DELETE {basePath}/logs?service=&level=&since=&until=
//	POST   {basePath}/logs/flush
//
// since/until are RFC 3339 timestamps. basePath may be empty or start with '/'.
type Router struct {
	reg      *supervisor.Registry
	basePath string
	timeout  time.Duration
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(reg *supervisor.Registry, basePath string) *Router {
	return &Router{reg: reg, basePath: sanitizeBase(basePath), timeout: 30 * time.Second}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/services", r.handleList)
	group.GET("/services/:key", r.handleGet)
	group.GET("/status", r.handleStatusByName)
	group.POST("/services/:key/start", r.handleStart)
	group.POST("/services/:key/stop", r.handleStop)
	group.POST("/services/:key/force-stop", r.handleForceStop)
	group.POST("/start", r.handleStartAll)
	group.POST("/stop", r.handleStopAll)
	group.GET("/logs", r.handleLogs)
	group.DELETE("/logs", r.handleEraseLogs)
	group.POST("/logs/flush", r.handleFlush)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, reg *supervisor.Registry) (*http.Server, error) {
	r := NewRouter(reg, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// Status describes one registered service.
type Status struct {
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	Running    bool     `json:"running"`
	OnlineTime int64    `json:"online_time"` // epoch millis, -1 when stopped
	Workers    []string `json:"workers"`
}

func (r *Router) status(s service.Service) Status {
	ot := r.reg.OnlineTime(s.Key())
	st := Status{
		Key:        string(s.Key()),
		Name:       s.Name(),
		Running:    ot != lifecycle.NotRunning,
		OnlineTime: ot,
		Workers:    []string{},
	}
	for _, w := range s.Workers() {
		st.Workers = append(st.Workers, fmt.Sprintf("%s#%d", w.Name(), w.ID()))
	}
	return st
}

func (r *Router) handleList(c *gin.Context) {
	svcs := r.reg.Services()
	service.SortByKey(svcs)
	out := make([]Status, 0, len(svcs))
	for _, s := range svcs {
		out = append(out, r.status(s))
	}
	writeJSON(c, http.StatusOK, out)
}

func (r *Router) handleGet(c *gin.Context) {
	s, err := r.reg.Get(service.Key(c.Param("key")))
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r.status(s))
}

func (r *Router) handleStatusByName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "name query param required"})
		return
	}
	s, err := r.reg.GetByName(name)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r.status(s))
}

func (r *Router) transition(c *gin.Context, op func(service.Key) (service.Service, error)) {
	s, err := op(service.Key(c.Param("key")))
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r.status(s))
}

func (r *Router) handleStart(c *gin.Context)     { r.transition(c, r.reg.Start) }
func (r *Router) handleStop(c *gin.Context)      { r.transition(c, r.reg.Stop) }
func (r *Router) handleForceStop(c *gin.Context) { r.transition(c, r.reg.ForceStop) }

func (r *Router) handleStartAll(c *gin.Context) {
	r.reg.StartAll()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStopAll(c *gin.Context) {
	r.reg.StopAll()
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// parseQuery reads the record filter from query parameters.
func parseQuery(c *gin.Context) (record.Query, error) {
	q := record.Query{Service: c.Query("service")}
	if lv := c.Query("level"); lv != "" {
		l, err := record.ParseLevel(lv)
		if err != nil {
			return q, err
		}
		q.Level = &l
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"since", &q.Since}, {"until", &q.Until}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, fmt.Errorf("invalid %s: %w", p.name, err)
		}
		*p.dst = t
	}
	return q, nil
}

func (r *Router) handleLogs(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), r.timeout)
	defer cancel()
	recs, err := r.reg.Archive().Retrieve(ctx, q)
	if err != nil {
		writeErr(c, err)
		return
	}
	if recs == nil {
		recs = []record.Record{}
	}
	writeJSON(c, http.StatusOK, recs)
}

type eraseResp struct {
	Erased int64 `json:"erased"`
}

func (r *Router) handleEraseLogs(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), r.timeout)
	defer cancel()
	n, err := r.reg.Archive().Erase(ctx, q)
	if err != nil {
		writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, eraseResp{Erased: n})
}

func (r *Router) handleFlush(c *gin.Context) {
	r.reg.Logger().Flush(logger.TriggerManual)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}
