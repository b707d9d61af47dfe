package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BioHazard786/roomcall/internal/callerr"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound         = errors.New("recording not found")
	ErrInvalidName      = errors.New("invalid recording name")
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Progress reports bytes written so far; total is -1 when unknown.
type Progress func(written, total int64)

// Fetcher downloads recording artifacts from the coordinator's HTTP API.
type Fetcher struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewFetcher(baseURL string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Minute},
		log:     log,
	}
}

// URL returns where name is served from.
func (f *Fetcher) URL(name string) string {
	return f.baseURL + "/" + url.PathEscape(name)
}

// Stat checks that name exists and returns its size, or -1 if the server
// does not say.
func (f *Fetcher) Stat(ctx context.Context, name string) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, f.URL(name), nil)
	if err != nil {
		return 0, callerr.NewError("stat recording", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, callerr.NewError("stat recording", err)
	}
	resp.Body.Close()

	if err := statusError("stat recording", name, resp.StatusCode); err != nil {
		return 0, err
	}
	return resp.ContentLength, nil
}

// Download saves name into dir without overwriting existing files and
// returns the path written.
func (f *Fetcher) Download(ctx context.Context, name, dir string, progress Progress) (string, error) {
	total, err := f.Stat(ctx, name)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(name), nil)
	if err != nil {
		return "", callerr.NewError("download recording", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", callerr.NewError("download recording", err)
	}
	defer resp.Body.Close()

	if err := statusError("download recording", name, resp.StatusCode); err != nil {
		return "", err
	}
	if resp.ContentLength >= 0 {
		total = resp.ContentLength
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", callerr.NewError("create download dir", err)
	}
	path := uniquePath(filepath.Join(dir, name))

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", callerr.NewError("create file", err)
	}

	w := &progressWriter{w: out, total: total, report: progress}
	_, copyErr := io.Copy(w, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(path)
		return "", callerr.WrapError("download recording", errors.Join(copyErr, closeErr), name)
	}

	f.log.Info().Str("file", name).Str("path", path).Int64("bytes", w.written).Msg("recording downloaded")
	return path, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func statusError(op, name string, code int) error {
	switch {
	case code == http.StatusNotFound:
		return callerr.WrapError(op, ErrNotFound, name)
	case code < 200 || code > 299:
		return callerr.WrapError(op, ErrUnexpectedStatus, fmt.Sprintf("%s: %d", name, code))
	}
	return nil
}

// uniquePath appends (1), (2), ... before the extension until the name is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

type progressWriter struct {
	w       io.Writer
	written int64
	total   int64
	report  Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.report != nil {
		p.report(p.written, p.total)
	}
	return n, err
}
