package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reposync/internal/logger"
	"reposync/internal/model"
	"time"

	"github.com/imroc/req/v3"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	PageSize       = 100
	defaultTimeout = 30 * time.Second
)

var maxPages = 1000

var (
	ErrNoToken       = errors.New("remote: token missing")
	ErrListTruncated = errors.New("remote: repository listing exceeded the page limit")
)

type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// Client talks to a GitHub-compatible REST API on behalf of one account.
type Client struct {
	client *req.Client
	owner  string
}

func New(baseURL, owner, token string) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	ts := oauth2.ReuseTokenSource(nil, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))

	c := req.C().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetUserAgent("reposync").
		SetCommonHeader("Accept", "application/vnd.github+json").
		SetCommonHeader("X-GitHub-Api-Version", "2022-11-28").
		SetCommonErrorResult(&APIError{}).
		OnBeforeRequest(func(_ *req.Client, r *req.Request) error {
			tok, err := ts.Token()
			if err != nil {
				return fmt.Errorf("failed to get token: %w", err)
			}
			r.SetHeader("Authorization", tok.Type()+" "+tok.AccessToken)
			return nil
		})

	return &Client{client: c, owner: owner}, nil
}

func (c *Client) Owner() string {
	return c.owner
}

// List returns every repository owned by the account, one page at a time
// until an empty page comes back. A listing that does not end within
// maxPages is an error, never a partial list.
func (c *Client) List(ctx context.Context) ([]model.RemoteRepo, error) {
	var all []model.RemoteRepo

	for page := 1; ; page++ {
		if page > maxPages {
			return nil, fmt.Errorf("%w (%d pages)", ErrListTruncated, maxPages)
		}

		var batch []model.RemoteRepo
		res, err := c.client.R().
			SetContext(ctx).
			SetQueryParam("per_page", fmt.Sprint(PageSize)).
			SetQueryParam("page", fmt.Sprint(page)).
			SetQueryParam("affiliation", "owner").
			SetSuccessResult(&batch).
			Get("/user/repos")
		if err := handleAPIError(res, err, "list repositories"); err != nil {
			return nil, err
		}

		if len(batch) == 0 {
			return all, nil
		}

		logger.Log.Debug("listed remote page",
			zap.Int("page", page),
			zap.Int("count", len(batch)))
		all = append(all, batch...)
	}
}

// Delete removes owner/name. A repository that is already gone counts as
// deleted.
func (c *Client) Delete(ctx context.Context, owner, name string) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("owner", owner).
		SetPathParam("name", name).
		Delete("/repos/{owner}/{name}")
	if err == nil && res.StatusCode == http.StatusNotFound {
		logger.Log.Info("remote repository already gone",
			zap.String("owner", owner),
			zap.String("name", name))
		return nil
	}

	return handleAPIError(res, err, "delete "+owner+"/"+name)
}

func handleAPIError(res *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	if res.IsErrorState() {
		if apiErr, ok := res.ErrorResult().(*APIError); ok {
			apiErr.Status = res.StatusCode
			return fmt.Errorf("%s: %w", operation, apiErr)
		}

		return fmt.Errorf("%s: unexpected status %d", operation, res.StatusCode)
	}

	return nil
}
