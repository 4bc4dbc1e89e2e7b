package appeears

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"appeearsfetch/internal/core/domain"
	"appeearsfetch/internal/core/ports"
	"appeearsfetch/internal/metrics"
)

const (
	// DefaultBaseURL is the AppEEARS API root.
	DefaultBaseURL = "https://appeears.earthdatacloud.nasa.gov/api"

	// DefaultTimeout bounds a single JSON request.
	DefaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of an error response ends up in an error message.
	maxErrorBody = 512
)

var (
	_ ports.Authenticator = (*Client)(nil)
	_ ports.TaskService   = (*Client)(nil)
)

// Client implements ports.Authenticator and ports.TaskService against the
// AppEEARS REST API.
type Client struct {
	baseURL string
	client  *http.Client
	// status queries must see a 303 toward the bundle instead of following it
	statusClient *http.Client
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// NewClient creates a Client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		statusClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:  logger,
		metrics: m,
	}, nil
}

// Login exchanges credentials for a bearer token using HTTP basic auth.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.AuthToken, error) {
	if creds.Empty() {
		return "", domain.NewStageError(domain.StageAuth, 0, errors.New("username and password are required"))
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/login", "", nil)
	if err != nil {
		return "", domain.NewStageError(domain.StageAuth, 0, err)
	}
	req.SetBasicAuth(creds.Username, creds.Password)

	var result struct {
		Token      string `json:"token"`
		TokenType  string `json:"token_type"`
		Expiration string `json:"expiration"`
	}
	code, err := c.doJSON(c.client, req, "login", &result)
	if err != nil {
		return "", domain.NewStageError(domain.StageAuth, code, err)
	}
	if result.Token == "" {
		return "", domain.NewStageError(domain.StageAuth, code, errors.New("response has no token field"))
	}

	c.logger.Debug("Logged in", zap.String("expiration", result.Expiration))
	return domain.AuthToken(result.Token), nil
}

// SubmitTask posts a point task and returns its task id.
func (c *Client) SubmitTask(ctx context.Context, token domain.AuthToken, jr domain.JobRequest) (domain.JobHandle, error) {
	body, err := json.Marshal(buildTask(jr))
	if err != nil {
		return "", domain.NewStageError(domain.StageSubmit, 0, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/task", token, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewStageError(domain.StageSubmit, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		TaskID string `json:"task_id"`
		Status string `json:"status"`
	}
	code, err := c.doJSON(c.client, req, "task", &result)
	if err != nil {
		return "", domain.NewStageError(domain.StageSubmit, code, err)
	}
	if result.TaskID == "" {
		return "", domain.NewStageError(domain.StageSubmit, code, errors.New("response has no task_id field"))
	}

	return domain.JobHandle(result.TaskID), nil
}

// TaskStatus queries the task status once.
func (c *Client) TaskStatus(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (domain.JobStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/status/"+url.PathEscape(string(handle)), token, nil)
	if err != nil {
		return domain.StatusUnknown, domain.NewStageError(domain.StagePoll, 0, err)
	}

	var result statusResponse
	code, err := c.doJSON(c.statusClient, req, "status", &result)
	if err != nil {
		return domain.StatusUnknown, domain.NewStageError(domain.StagePoll, code, err)
	}

	status := result.normalize()
	if status == domain.StatusUnknown && code == http.StatusSeeOther {
		// the service only redirects a status query to the bundle once the task is done
		status = domain.StatusDone
	}
	return status, nil
}

// Bundle lists the output files of a completed task.
func (c *Client) Bundle(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (*domain.ResultBundle, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/bundle/"+url.PathEscape(string(handle)), token, nil)
	if err != nil {
		return nil, domain.NewStageError(domain.StageBundle, 0, err)
	}

	var bundle domain.ResultBundle
	code, err := c.doJSON(c.client, req, "bundle", &bundle)
	if err != nil {
		return nil, domain.NewStageError(domain.StageBundle, code, err)
	}
	if bundle.Files == nil {
		return nil, domain.NewStageError(domain.StageBundle, code, errors.New("response has no files field"))
	}

	return &bundle, nil
}

// FileURL returns the download location of one bundle file.
func (c *Client) FileURL(handle domain.JobHandle, fileID string) string {
	return fmt.Sprintf("%s/bundle/%s/%s", c.baseURL, url.PathEscape(string(handle)), url.PathEscape(fileID))
}

func (c *Client) newRequest(ctx context.Context, method, path string, token domain.AuthToken, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+string(token))
	}
	return req, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"))
}

// doJSON sends req and decodes the body into out. It returns the response
// status code, or 0 when no response arrived. 2xx and 303 count as success.
func (c *Client) doJSON(hc *http.Client, req *http.Request, endpoint string, out any) (int, error) {
	resp, err := hc.Do(req)
	if err != nil {
		c.metrics.Requests.WithLabelValues(endpoint, "error").Inc()
		return 0, err
	}
	defer resp.Body.Close()
	c.metrics.Requests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusSeeOther
	if !ok {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("unexpected status %d from %s: %s",
			resp.StatusCode, endpoint, strings.TrimSpace(string(respBody)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return resp.StatusCode, nil
	}
	if resp.StatusCode == http.StatusSeeOther {
		// a redirect body is a hint at most, usually a short HTML page
		if isJSON(resp.Header.Get("Content-Type")) {
			_ = json.Unmarshal(data, out)
		}
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}
	return resp.StatusCode, nil
}
