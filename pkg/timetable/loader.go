// Package timetable loads GTFS schedules from disk or the network and keeps the live
// transit graph up to date
package timetable

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/travigo/subway/pkg/gtfs"
	"github.com/travigo/subway/pkg/transitgraph"
)

const userAgent = "curl/subway"

// Load reads a GTFS schedule from a zip file, an extracted directory or an http(s) URL
func Load(ctx context.Context, source string) (*gtfs.Schedule, error) {
	schedule := &gtfs.Schedule{}

	if isRemote(source) {
		path, err := downloadTemp(ctx, source)
		if err != nil {
			return nil, err
		}
		defer os.Remove(path)

		source = path
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		if err := schedule.ParseDirectory(source); err != nil {
			return nil, err
		}
		return schedule, nil
	}

	file, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := schedule.ParseFile(file); err != nil {
		return nil, err
	}

	return schedule, nil
}

// LoadGraph loads the schedule and builds a graph from it
func LoadGraph(ctx context.Context, source string, options transitgraph.Options) (*transitgraph.Graph, transitgraph.BuildStats, error) {
	schedule, err := Load(ctx, source)
	if err != nil {
		return nil, transitgraph.BuildStats{}, fmt.Errorf("load timetable: %w", err)
	}

	return transitgraph.Build(schedule, options)
}

// Download streams a remote file into destination
func Download(ctx context.Context, source string, destination io.Writer, headers ...[]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return err
	}
	req.Header.Set("user-agent", userAgent)

	for _, header := range headers {
		req.Header.Set(header[0], header[1])
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", source, resp.StatusCode)
	}

	written, err := io.Copy(destination, resp.Body)
	if err != nil {
		return fmt.Errorf("download %s: %w", source, err)
	}

	log.Info().Str("source", source).Int64("bytes", written).Msg("Downloaded file")

	return nil
}

func downloadTemp(ctx context.Context, source string) (string, error) {
	tmpFile, err := os.CreateTemp(os.TempDir(), "subway-timetable-")
	if err != nil {
		return "", fmt.Errorf("cannot create temporary file: %w", err)
	}
	defer tmpFile.Close()

	if err := Download(ctx, source, tmpFile); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
