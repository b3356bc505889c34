package daemon

import (
	"context"
	"fmt"
	"reposync/internal/model"
	"strconv"
	"time"

	"github.com/imroc/req/v3"
)

// Client talks to a running daemon over its local HTTP API.
type Client struct {
	http *req.Client
}

func NewClient(port int) *Client {
	return NewClientURL(fmt.Sprintf("http://localhost:%d", port))
}

func NewClientURL(baseURL string) *Client {
	return &Client{
		http: req.C().
			SetBaseURL(baseURL).
			SetTimeout(5 * time.Second),
	}
}

func (c *Client) Status(ctx context.Context) (model.DaemonSnapshot, error) {
	var snap model.DaemonSnapshot
	return snap, c.get(ctx, "/status", &snap)
}

func (c *Client) History(ctx context.Context, n int) ([]model.Run, error) {
	var runs []model.Run
	return runs, c.get(ctx, "/history?n="+strconv.Itoa(n), &runs)
}

// Trigger asks the daemon to queue a run and returns its answer.
func (c *Client) Trigger(ctx context.Context) (string, error) {
	var out map[string]string
	if err := c.post(ctx, "/sync", &out); err != nil {
		return "", err
	}
	return out["status"], nil
}

func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "/stop", nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(out).
		Get(path)
	return check(res, err)
}

func (c *Client) post(ctx context.Context, path string, out any) error {
	r := c.http.R().SetContext(ctx)
	if out != nil {
		r.SetSuccessResult(out)
	}

	res, err := r.Post(path)
	return check(res, err)
}

func check(res *req.Response, err error) error {
	if err != nil {
		return fmt.Errorf("daemon not running: %w", err)
	}
	if res.IsErrorState() {
		return fmt.Errorf("daemon returned %s", res.Status)
	}
	return nil
}
