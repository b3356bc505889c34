package daemon

import (
	"context"
	"errors"
	"net/http"
	"reposync/internal/logger"
	"reposync/internal/model"
	"reposync/internal/report"
	"reposync/internal/repository"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	echo     *echo.Echo
	manager  *Manager
	runRepo  *repository.RunRepository
	taskRepo *repository.TaskRepository
	port     int
	stopCh   chan struct{}
}

func NewServer(manager *Manager, runRepo *repository.RunRepository, taskRepo *repository.TaskRepository, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		manager:  manager,
		runRepo:  runRepo,
		taskRepo: taskRepo,
		port:     port,
		stopCh:   make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// For the entire daemon
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/sync", s.handleSync)
	s.echo.POST("/stop", s.handleStop)

	// Run history
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/history/:id", s.handleRun)

	// Dashboard, fed by report.HTTP
	g := s.echo.Group("/tasks")
	g.GET("", s.handleListTasks)
	g.POST("", s.handleCreateTask)
	g.GET("/:id", s.handleGetTask)
	g.POST("/:id/logs", s.handleTaskLog)
	g.POST("/:id/progress", s.handleTaskProgress)
	g.POST("/:id/complete", s.handleTaskComplete)
	g.POST("/:id/fail", s.handleTaskFail)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	s.manager.Stop()
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleSync(c echo.Context) error {
	if !s.manager.Trigger("api") {
		return c.JSON(http.StatusAccepted, map[string]string{"status": "already queued"})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleHistory(c echo.Context) error {
	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil && parsed > 0 {
			n = parsed
		}
	}

	runs, err := s.runRepo.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleRun(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid id"})
	}

	run, err := s.runRepo.GetByID(uint(id))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	return c.JSON(http.StatusOK, run)
}

func (s *Server) handleListTasks(c echo.Context) error {
	tasks, err := s.taskRepo.GetRecent(20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, tasks)
}

type createTaskRequest struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (s *Server) handleCreateTask(c echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil || req.UUID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "uuid required"})
	}

	task, err := s.taskRepo.Create(req.UUID, req.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c echo.Context) error {
	task, err := s.taskRepo.Get(c.Param("id"))
	if err != nil {
		return taskError(c, err)
	}

	return c.JSON(http.StatusOK, task)
}

type taskLogRequest struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (s *Server) handleTaskLog(c echo.Context) error {
	var req taskLogRequest
	if err := c.Bind(&req); err != nil || req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message required"})
	}
	if req.Level == "" {
		req.Level = string(report.LevelInfo)
	}

	if err := s.taskRepo.AddLog(c.Param("id"), req.Level, req.Message); err != nil {
		return taskError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

type taskProgressRequest struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

func (s *Server) handleTaskProgress(c echo.Context) error {
	var req taskProgressRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid progress"})
	}

	if err := s.taskRepo.UpdateProgress(c.Param("id"), req.Done, req.Total); err != nil {
		return taskError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleTaskComplete(c echo.Context) error {
	var counters model.SyncCounters
	if err := c.Bind(&counters); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid counters"})
	}

	if err := s.taskRepo.Complete(c.Param("id"), report.Summary(counters)); err != nil {
		return taskError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

type taskFailRequest struct {
	Error string `json:"error"`
}

func (s *Server) handleTaskFail(c echo.Context) error {
	var req taskFailRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}

	if err := s.taskRepo.Fail(c.Param("id"), req.Error); err != nil {
		return taskError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func taskError(c echo.Context, err error) error {
	if errors.Is(err, repository.ErrTaskNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
