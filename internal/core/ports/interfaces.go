package ports

import (
	"context"
	"io"

	"appeearsfetch/internal/core/domain"
)

// Authenticator exchanges credentials for a bearer token.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.AuthToken, error)
}

// TaskService is the task side of the remote API.
type TaskService interface {
	// SubmitTask creates a server-side task and returns its handle.
	SubmitTask(ctx context.Context, token domain.AuthToken, req domain.JobRequest) (domain.JobHandle, error)

	// TaskStatus queries the current status once. A response without a status
	// yields domain.StatusUnknown and no error.
	TaskStatus(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (domain.JobStatus, error)

	// Bundle lists the output files of a completed task.
	Bundle(ctx context.Context, token domain.AuthToken, handle domain.JobHandle) (*domain.ResultBundle, error)

	// FileURL returns the download location of one bundle file.
	FileURL(handle domain.JobHandle, fileID string) string
}

// Download is an open file stream. Size is -1 when the length is unknown.
type Download struct {
	Body io.ReadCloser
	Size int64
}

// Downloader opens authenticated file streams.
type Downloader interface {
	// Download fetches fileURL with the bearer token. The caller must close Body.
	Download(ctx context.Context, fileURL string, token domain.AuthToken) (*Download, error)
}

// Storage persists downloaded files.
type Storage interface {
	// Init creates the destination directory.
	Init(ctx context.Context) error

	// SaveFile streams reader to the destination file for name and returns its
	// path and the number of bytes written. When size is not negative, anything
	// other than exactly size bytes is an error. No file is left behind on error.
	SaveFile(ctx context.Context, name string, reader io.Reader, size int64) (string, int64, error)

	// Path returns the destination path for name.
	Path(name string) (string, error)
}
