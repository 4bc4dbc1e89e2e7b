package appeears

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"appeearsfetch/internal/core/domain"
	"appeearsfetch/internal/metrics"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *metrics.Metrics) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.New()
	c, err := NewClient(srv.URL+"/api", 5*time.Second, zap.NewNop(), m)
	require.NoError(t, err)
	return c, m
}

func testRequest() domain.JobRequest {
	return domain.JobRequest{
		Name:         "example_point_task",
		StartDate:    time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC),
		Latitude:     35.5,
		Longitude:    -97.5,
		Product:      "SPL4SMGP.008",
		Layer:        "Geophysical_Data_sm_rootzone",
		OutputFormat: "CSV",
	}
}

func TestNewClient(t *testing.T) {
	c, err := NewClient("", 0, zap.NewNop(), metrics.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultTimeout, c.client.Timeout)

	_, err = NewClient("not a url", time.Second, zap.NewNop(), metrics.New())
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/login", r.URL.Path)
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "alice", user)
			assert.Equal(t, "secret", pass)
			w.Write([]byte(`{"token_type":"Bearer","token":"tok-123","expiration":"2024-08-01T00:00:00Z"}`))
		}))

		token, err := c.Login(context.Background(), domain.Credentials{Username: "alice", Password: "secret"})
		require.NoError(t, err)
		assert.Equal(t, domain.AuthToken("tok-123"), token)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("login", "200")))
	})

	t.Run("bad credentials", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"invalid credentials"}`, http.StatusUnauthorized)
		}))

		_, err := c.Login(context.Background(), domain.Credentials{Username: "alice", Password: "wrong"})
		require.ErrorIs(t, err, domain.ErrAuth)
		var se *domain.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
		assert.Contains(t, err.Error(), "invalid credentials")
	})

	t.Run("missing token field", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"token_type":"Bearer"}`))
		}))

		_, err := c.Login(context.Background(), domain.Credentials{Username: "alice", Password: "secret"})
		require.ErrorIs(t, err, domain.ErrAuth)
		assert.Contains(t, err.Error(), "no token field")
	})

	t.Run("empty credentials", func(t *testing.T) {
		called := false
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		_, err := c.Login(context.Background(), domain.Credentials{Username: "alice"})
		require.ErrorIs(t, err, domain.ErrAuth)
		assert.False(t, called)
	})
}

func TestSubmitTask(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/task", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			body, err := io.ReadAll(r.Body)
			assert.NoError(t, err)
			assert.JSONEq(t, `{
				"task_type": "point",
				"task_name": "example_point_task",
				"params": {
					"dates": [{"startDate": "07-01-2024", "endDate": "07-31-2024"}],
					"layers": [{"layer": "Geophysical_Data_sm_rootzone", "product": "SPL4SMGP.008"}],
					"coordinates": [{"latitude": 35.5, "longitude": -97.5}],
					"output": {"format": "CSV"}
				}
			}`, string(body))

			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"task_id":"abc-123","status":"pending"}`))
		}))

		handle, err := c.SubmitTask(context.Background(), "tok", testRequest())
		require.NoError(t, err)
		assert.Equal(t, domain.JobHandle("abc-123"), handle)
	})

	t.Run("rejected", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"unknown product"}`, http.StatusBadRequest)
		}))

		_, err := c.SubmitTask(context.Background(), "tok", testRequest())
		require.ErrorIs(t, err, domain.ErrSubmission)
		var se *domain.StageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	})

	t.Run("missing task id", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"pending"}`))
		}))

		_, err := c.SubmitTask(context.Background(), "tok", testRequest())
		require.ErrorIs(t, err, domain.ErrSubmission)
	})
}

func TestTaskStatus(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		contentType string
		body        string
		want        domain.JobStatus
	}{
		{name: "top level", code: http.StatusOK, body: `{"task_id":"t1","status":"processing"}`, want: domain.StatusProcessing},
		{name: "nested under task", code: http.StatusOK, body: `{"task":{"task_id":"t1","status":"done"}}`, want: domain.StatusDone},
		{name: "top level wins", code: http.StatusOK, body: `{"status":"pending","task":{"status":"done"}}`, want: domain.StatusPending},
		{name: "empty top level falls back", code: http.StatusOK, body: `{"status":"","task":{"status":"error"}}`, want: domain.StatusError},
		{name: "absent", code: http.StatusOK, body: `{"task_id":"t1","progress":{"summary":40}}`, want: domain.StatusUnknown},
		{name: "redirect to bundle", code: http.StatusSeeOther, body: ``, want: domain.StatusDone},
		{name: "redirect with status", code: http.StatusSeeOther, contentType: "application/json", body: `{"status":"processing"}`, want: domain.StatusProcessing},
		{name: "redirect with html body", code: http.StatusSeeOther, contentType: "text/html; charset=utf-8", body: `<a href="/api/bundle/t1">See Other</a>.`, want: domain.StatusDone},
		{name: "redirect with broken json", code: http.StatusSeeOther, contentType: "application/json", body: `{"status":`, want: domain.StatusDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/api/status/t1", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				if tt.code == http.StatusSeeOther {
					w.Header().Set("Location", "/api/bundle/t1")
				}
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))

			status, err := c.TaskStatus(context.Background(), "tok", "t1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}

	t.Run("standard redirect response", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/api/bundle/t1", http.StatusSeeOther)
		}))

		status, err := c.TaskStatus(context.Background(), "tok", "t1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, status)
	})

	t.Run("server error", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := c.TaskStatus(context.Background(), "tok", "t1")
		require.ErrorIs(t, err, domain.ErrPoll)
	})

	t.Run("malformed body", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		}))

		_, err := c.TaskStatus(context.Background(), "tok", "t1")
		require.ErrorIs(t, err, domain.ErrPoll)
	})
}

func TestBundle(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/bundle/t1", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]any{
				"task_id": "t1",
				"files": []map[string]any{
					{"file_id": "x1", "file_name": "t1-request.json", "file_type": "json", "file_size": 812},
					{"file_id": "c1", "file_name": "result.csv", "file_type": "csv", "file_size": 20480},
				},
			})
		}))

		bundle, err := c.Bundle(context.Background(), "tok", "t1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobHandle("t1"), bundle.TaskID)
		require.Len(t, bundle.Files, 2)
		assert.Equal(t, domain.FileDescriptor{ID: "c1", Name: "result.csv", Type: "csv", Size: 20480}, bundle.Files[1])
	})

	t.Run("not found", func(t *testing.T) {
		c, _ := newTestClient(t, http.NotFoundHandler())

		_, err := c.Bundle(context.Background(), "tok", "t1")
		require.ErrorIs(t, err, domain.ErrBundle)
	})

	t.Run("missing files field", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"task_id":"t1"}`))
		}))

		_, err := c.Bundle(context.Background(), "tok", "t1")
		require.ErrorIs(t, err, domain.ErrBundle)
	})
}

func TestFileURL(t *testing.T) {
	c, err := NewClient("https://example.com/api/", time.Second, zap.NewNop(), metrics.New())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/bundle/t1/f%201", c.FileURL("t1", "f 1"))
}
