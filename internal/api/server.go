package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/portwatch/portwatch/internal/engine"
	"github.com/portwatch/portwatch/internal/output"
	"github.com/portwatch/portwatch/pkg/model"
	"github.com/rs/zerolog/log"
)

// Backend is what the HTTP surface reads and controls.
type Backend interface {
	Latest() (engine.Update, bool)
	Subscribe() (<-chan engine.Update, func())
	TerminateProcess(ctx context.Context, pid int) model.ActionResult
	StopContainer(ctx context.Context, id string) model.ActionResult
	RestartContainer(ctx context.Context, id string) model.ActionResult
}

type Server struct {
	backend Backend
	router  *gin.Engine
}

func New(b Backend) *Server {
	r := gin.New()
	r.Use(gin.Recovery(), logMiddleware)

	s := &Server{backend: b, router: r}
	g := r.Group("api", originMiddleware)
	g.GET("rows", s.rowsView)
	g.GET("mappings", s.mappingsView)
	g.GET("status", s.statusView)
	g.GET("ws", s.wsView)

	actions := g.Group("", jsonMiddleware)
	actions.POST("processes/:pid/terminate", s.terminateView)
	actions.POST("containers/:id/stop", s.stopView)
	actions.POST("containers/:id/restart", s.restartView)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func logMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	log.Debug().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("took", time.Since(start)).
		Msg("api request")
}

func report(u engine.Update) output.Report {
	r := output.Report{
		GeneratedAt: u.At,
		View:        u.View,
		Status:      u.Status(),
		Docker:      u.Provider,
		Rows:        u.Rows,
	}
	return r
}

func (s *Server) rowsView(c *gin.Context) {
	u, ready := s.backend.Latest()
	if !ready {
		fail(http.StatusServiceUnavailable, codeNotReady, "first scan has not completed", c)
		return
	}
	ok(report(u), "ok", c)
}

func (s *Server) mappingsView(c *gin.Context) {
	u, ready := s.backend.Latest()
	if !ready || u.Docker == nil {
		ok([]model.DockerMapping{}, "docker: pending", c)
		return
	}
	items := u.Docker.Items
	if items == nil {
		items = []model.DockerMapping{}
	}
	ok(items, u.Status(), c)
}

type statusResponse struct {
	Status   string    `json:"status"`
	Sockets  int       `json:"sockets"`
	Mappings int       `json:"mappings"`
	Provider string    `json:"provider,omitempty"`
	At       time.Time `json:"at"`
}

func (s *Server) statusView(c *gin.Context) {
	u, _ := s.backend.Latest()
	ok(statusResponse{
		Status:   u.Status(),
		Sockets:  u.Sockets.Len(),
		Mappings: u.Docker.Len(),
		Provider: u.Provider,
		At:       u.At,
	}, "ok", c)
}

func (s *Server) terminateView(c *gin.Context) {
	pid, err := strconv.Atoi(c.Param("pid"))
	if err != nil || pid <= 0 {
		fail(http.StatusBadRequest, codeBadRequest, "invalid pid "+strconv.Quote(c.Param("pid")), c)
		return
	}
	action(s.backend.TerminateProcess(c.Request.Context(), pid), c)
}

func (s *Server) stopView(c *gin.Context) {
	action(s.backend.StopContainer(c.Request.Context(), c.Param("id")), c)
}

func (s *Server) restartView(c *gin.Context) {
	action(s.backend.RestartContainer(c.Request.Context(), c.Param("id")), c)
}

func action(res model.ActionResult, c *gin.Context) {
	if !res.OK {
		fail(http.StatusOK, codeActionFailed, res.Message, c)
		return
	}
	ok(res, res.Message, c)
}
