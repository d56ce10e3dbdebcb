// Package server exposes the instrument registry over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/danmuck/labctl/internal/auth"
	"github.com/danmuck/labctl/internal/instruments"
	"github.com/danmuck/labctl/internal/node"
	"github.com/danmuck/labctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

var (
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrActionNotFound     = errors.New("action not found")
)

type Server struct {
	ID       string                `json:"id"`
	Addr     string                `json:"addr"`
	Appeared time.Time             `json:"appeared"`
	Registry *instruments.Registry `json:"-"`

	// PingTimeout bounds each instrument ping of GET /ready.
	PingTimeout time.Duration `json:"-"`

	// Auth, when set, guards the action route with a bearer token.
	Auth auth.Validator `json:"-"`

	router *gin.Engine
}

var _ node.Node = (*Server)(nil)

func New(id, addr string, corsOrigins []string, registry *instruments.Registry) *Server {
	observability.RegisterMetrics()
	if registry == nil {
		registry = instruments.NewRegistry()
	}
	r := gin.New()
	s := &Server{
		ID:          id,
		Addr:        addr,
		Appeared:    time.Now(),
		Registry:    registry,
		PingTimeout: 2 * time.Second,
		router:      r,
	}
	r.Use(gin.Recovery())
	r.Use(observability.RequestObserver(s, log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	return s
}

func (s *Server) NodeID() string {
	return s.ID
}

func (s *Server) Kind() string {
	return "labctl"
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"uptime":      time.Since(s.Appeared).String(),
			"service":     s.ID,
			"version":     version,
			"instruments": s.Registry.Len(),
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		pings := s.PingAll(c.Request.Context())
		ready := true
		for _, ok := range pings {
			ready = ready && ok
		}
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":       ready,
			"uptime":      time.Since(s.Appeared).String(),
			"service":     s.ID,
			"version":     version,
			"instruments": pings,
		})
	})

	s.router.GET("/instruments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"instruments": s.ListInstruments(),
		})
	})

	handlers := []gin.HandlerFunc{}
	if s.Auth != nil {
		handlers = append(handlers, auth.Require(s.Auth))
	}
	handlers = append(handlers, func(c *gin.Context) {
		id := c.Param("id")
		action := c.Param("action")

		args, err := decodeArgs(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := s.ExecuteAction(c.Request.Context(), id, action, args)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	})
	s.router.POST("/instruments/:id/actions/:action", handlers...)
}

// ExecuteAction dispatches one action to a registered instrument.
func (s *Server) ExecuteAction(ctx context.Context, id, action string, args map[string]string) (instruments.Result, error) {
	inst, ok := s.Registry.Resolve(id)
	if !ok {
		return instruments.Result{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, id)
	}
	meta := inst.Metadata()
	if !instruments.SupportsAction(inst.Operations(), action) {
		return instruments.Result{}, fmt.Errorf("%w: %s %s", ErrActionNotFound, id, action)
	}

	start := time.Now()
	res, err := inst.Execute(ctx, action, args)
	observability.RecordInstrumentAction(id, meta.Kind, action, time.Since(start), err == nil)
	if err != nil {
		log.Error().
			Str("node", s.ID).
			Str("instrument", id).
			Str("action", action).
			Err(err).
			Msg("instrument action failed")
		return instruments.Result{}, err
	}

	log.Info().
		Str("node", s.ID).
		Str("instrument", id).
		Str("action", action).
		Msg("instrument action executed")
	return res, nil
}

// InstrumentInfo is one entry of GET /instruments.
type InstrumentInfo struct {
	instruments.Metadata
	Actions []instruments.OperationSpec `json:"actions"`
}

func (s *Server) ListInstruments() []InstrumentInfo {
	metas := s.Registry.ListMetadata()
	list := make([]InstrumentInfo, 0, len(metas))
	for _, meta := range metas {
		inst, ok := s.Registry.Resolve(meta.ID)
		if !ok {
			continue
		}
		list = append(list, InstrumentInfo{Metadata: meta, Actions: inst.Operations()})
	}
	return list
}

// PingAll pings every instrument concurrently.
func (s *Server) PingAll(ctx context.Context) map[string]bool {
	metas := s.Registry.ListMetadata()
	out := make(map[string]bool, len(metas))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, meta := range metas {
		inst, ok := s.Registry.Resolve(meta.ID)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(id string, inst instruments.Instrument) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.PingTimeout)
			defer cancel()
			ok := inst.Ping(pctx)
			mu.Lock()
			out[id] = ok
			mu.Unlock()
		}(meta.ID, inst)
	}
	wg.Wait()
	return out
}

// Serve registers the routes and serves until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("node", s.ID).Str("addr", s.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInstrumentNotFound), errors.Is(err, ErrActionNotFound),
		errors.Is(err, instruments.ErrUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, instruments.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, os.ErrDeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// decodeArgs reads an optional JSON object of action arguments. Non-string
// values are rendered with fmt.
func decodeArgs(body io.Reader) (map[string]string, error) {
	args := map[string]string{}
	if body == nil {
		return args, nil
	}
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return args, nil
		}
		return nil, fmt.Errorf("args must be a JSON object: %w", err)
	}
	for k, v := range raw {
		switch x := v.(type) {
		case string:
			args[k] = x
		case nil:
		default:
			args[k] = fmt.Sprint(x)
		}
	}
	return args, nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
