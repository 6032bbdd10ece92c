package feedcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const userAgent = "curl/subway"

// Source supplies the raw protobuf body of one feed partition
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPSource fetches a GTFS-realtime feed over http(s), or reads it from disk when the
// location is a plain file path
type HTTPSource struct {
	Location string
	APIKey   string
	Client   *http.Client

	// InitialInterval is the first retry delay for transient failures
	InitialInterval time.Duration
}

func NewHTTPSource(location string, apiKey string) *HTTPSource {
	return &HTTPSource{
		Location:        location,
		APIKey:          apiKey,
		Client:          &http.Client{},
		InitialInterval: 250 * time.Millisecond,
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	if !isRemote(s.Location) {
		return os.ReadFile(s.Location)
	}

	retryBackoff := backoff.NewExponentialBackOff()
	retryBackoff.InitialInterval = s.InitialInterval
	// The caller's context deadline bounds the retries
	retryBackoff.MaxElapsedTime = 0

	return backoff.RetryNotifyWithData(
		func() ([]byte, error) {
			return s.fetchOnce(ctx)
		},
		backoff.WithContext(retryBackoff, ctx),
		func(err error, wait time.Duration) {
			log.Debug().Err(err).Str("url", s.Location).Dur("wait", wait).Msg("Retrying feed fetch")
		},
	)
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Location, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("user-agent", userAgent)
	if s.APIKey != "" {
		req.Header.Set("x-api-key", s.APIKey)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode, s.Location)

		// Only server side and rate limit responses are worth retrying
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return body, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
