package report

import (
	"context"
	"reposync/internal/logger"
	"reposync/internal/model"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"go.uber.org/zap"
)

const httpTimeout = 2 * time.Second

// HTTP forwards notifications to a dashboard process. Every failure to reach
// it is swallowed.
type HTTP struct {
	client *req.Client
	mu     sync.RWMutex
	taskID string
}

func NewHTTP(baseURL string) *HTTP {
	return &HTTP{
		client: req.C().
			SetBaseURL(baseURL).
			SetTimeout(httpTimeout).
			SetUserAgent("reposync"),
	}
}

func (h *HTTP) TaskID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.taskID
}

func (h *HTTP) CreateTask(name string) {
	id := uuid.NewString()
	h.mu.Lock()
	h.taskID = id
	h.mu.Unlock()

	h.post("/tasks", map[string]string{"uuid": id, "name": name})
}

func (h *HTTP) LogLine(level Level, msg string) {
	h.postTask("/logs", map[string]string{"level": string(level), "message": msg})
}

func (h *HTTP) ReportProgress(done, total int) {
	h.postTask("/progress", map[string]int{"done": done, "total": total})
}

func (h *HTTP) Complete(s model.SyncCounters) {
	h.postTask("/complete", s)
}

func (h *HTTP) Fail(err error) {
	h.postTask("/fail", map[string]string{"error": err.Error()})
}

func (h *HTTP) postTask(suffix string, body any) {
	id := h.TaskID()
	if id == "" {
		return
	}
	h.post("/tasks/"+id+suffix, body)
}

func (h *HTTP) post(path string, body any) {
	ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
	defer cancel()

	res, err := h.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		logger.Log.Debug("dashboard unreachable",
			zap.String("path", path),
			zap.Error(err))
		return
	}

	if res.IsErrorState() {
		logger.Log.Debug("dashboard rejected notification",
			zap.String("path", path),
			zap.Int("status", res.StatusCode))
	}
}
