package book

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

// MaxRetries is how many times a chapter fetch is attempted.
const MaxRetries = 3

// HTTPSource fetches chapters from <BaseURL>/chapters/<id>.bd, retrying
// server errors with jittered exponential backoff.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
	// BaseDelay is the first retry delay. It doubles per attempt.
	BaseDelay time.Duration
}

// RetryableError marks a failure worth retrying.
type RetryableError struct {
	StatusCode int
	Err        error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base << uint(attempt)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2 + 1))
	return d + jitter
}

func (s HTTPSource) ChapterText(ctx context.Context, id string) (string, error) {
	u, err := url.JoinPath(s.BaseURL, "chapters", id+ChapterExt)
	if err != nil {
		return "", fmt.Errorf("chapter url: %w", err)
	}
	var lastErr error
	for attempt := range MaxRetries {
		var text string
		text, lastErr = s.fetch(ctx, u)
		if lastErr == nil || !IsRetryable(lastErr) {
			return text, lastErr
		}
		select {
		case <-time.After(Backoff(attempt, s.BaseDelay)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("fetch %s: %w", u, lastErr)
}

func (s HTTPSource) fetch(ctx context.Context, u string) (string, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &RetryableError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%s: %w", u, fs.ErrNotExist)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &RetryableError{StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RetryableError{Err: err}
	}
	return string(body), nil
}

// FetchManifest downloads and validates <baseURL>/book.json.
func FetchManifest(ctx context.Context, client *http.Client, baseURL string) (*Manifest, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u, err := url.JoinPath(baseURL, ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("manifest url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("load %s: %s", u, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}
