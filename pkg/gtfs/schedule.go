package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingTable  = errors.New("missing required gtfs table")
	ErrMissingColumn = errors.New("missing required gtfs column")
)

type Schedule struct {
	Stops     []Stop
	Routes    []Route
	Trips     []Trip
	StopTimes []StopTime
	Transfers []Transfer

	// SkippedRows counts rows dropped because a cell could not be parsed
	SkippedRows int
}

type table struct {
	destination     interface{}
	required        bool
	requiredColumns []string

	// drop removes the rows at the given indexes from destination
	drop func(rows map[int]bool)
}

func (g *Schedule) tables() map[string]table {
	return map[string]table{
		"stops.txt": {
			destination:     &g.Stops,
			required:        true,
			requiredColumns: []string{"stop_id", "stop_name"},
			drop:            func(rows map[int]bool) { g.Stops = dropRows(g.Stops, rows) },
		},
		"routes.txt": {
			destination:     &g.Routes,
			required:        true,
			requiredColumns: []string{"route_id"},
			drop:            func(rows map[int]bool) { g.Routes = dropRows(g.Routes, rows) },
		},
		"trips.txt": {
			destination:     &g.Trips,
			required:        true,
			requiredColumns: []string{"trip_id", "route_id"},
			drop:            func(rows map[int]bool) { g.Trips = dropRows(g.Trips, rows) },
		},
		"stop_times.txt": {
			destination:     &g.StopTimes,
			required:        true,
			requiredColumns: []string{"trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time"},
			drop:            func(rows map[int]bool) { g.StopTimes = dropRows(g.StopTimes, rows) },
		},
		"transfers.txt": {
			destination:     &g.Transfers,
			requiredColumns: []string{"from_stop_id", "to_stop_id", "transfer_type"},
			drop:            func(rows map[int]bool) { g.Transfers = dropRows(g.Transfers, rows) },
		},
	}
}

func init() {
	// Allow us to ignore those naughty records that have missing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		r.LazyQuotes = true
		return r
	})
}

// ParseFile reads a zipped GTFS bundle
func (g *Schedule) ParseFile(reader io.Reader) error {
	body, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return err
	}

	files := map[string][]byte{}
	for _, zipFile := range archive.File {
		// Some publishers nest the tables inside a folder
		fileName := filepath.Base(zipFile.Name)
		if _, wanted := g.tables()[fileName]; !wanted {
			log.Debug().Str("file", zipFile.Name).Msg("Ignoring gtfs file")
			continue
		}

		file, err := zipFile.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", zipFile.Name, err)
		}
		contents, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", zipFile.Name, err)
		}

		files[fileName] = contents
	}

	return g.parseTables(files)
}

// ParseDirectory reads an extracted GTFS bundle
func (g *Schedule) ParseDirectory(directory string) error {
	files := map[string][]byte{}

	for fileName := range g.tables() {
		contents, err := os.ReadFile(filepath.Join(directory, fileName))
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return err
		}

		files[fileName] = contents
	}

	return g.parseTables(files)
}

func (g *Schedule) parseTables(files map[string][]byte) error {
	for fileName, definition := range g.tables() {
		contents, exists := files[fileName]
		if !exists {
			if definition.required {
				return fmt.Errorf("%w: %s", ErrMissingTable, fileName)
			}
			continue
		}

		contents = bytes.TrimPrefix(contents, []byte("\xef\xbb\xbf"))

		if err := checkColumns(contents, definition.requiredColumns); err != nil {
			return fmt.Errorf("%s: %w", fileName, err)
		}

		log.Info().Str("file", fileName).Msg("Loading file")

		badRows := map[int]bool{}
		err := gocsv.UnmarshalWithErrorHandler(bytes.NewReader(contents), func(parseError *csv.ParseError) bool {
			log.Warn().Str("file", fileName).Int("line", parseError.Line).Int("column", parseError.Column).Err(parseError.Err).Msg("Skipping malformed row")

			// Lines are 1-indexed and include the header
			badRows[parseError.Line-2] = true
			return true
		}, definition.destination)
		if err != nil {
			log.Error().Str("file", fileName).Err(err).Msg("Failed to parse csv file")
			return fmt.Errorf("%s: %w", fileName, err)
		}

		if len(badRows) > 0 {
			definition.drop(badRows)
			g.SkippedRows += len(badRows)
		}
	}

	log.Info().
		Int("stops", len(g.Stops)).
		Int("routes", len(g.Routes)).
		Int("trips", len(g.Trips)).
		Int("stoptimes", len(g.StopTimes)).
		Int("transfers", len(g.Transfers)).
		Int("skipped", g.SkippedRows).
		Msg("Loaded gtfs schedule")

	return nil
}

func dropRows[T any](rows []T, drop map[int]bool) []T {
	kept := make([]T, 0, len(rows))
	for i, row := range rows {
		if !drop[i] {
			kept = append(kept, row)
		}
	}

	return kept
}

func checkColumns(contents []byte, requiredColumns []string) error {
	header, err := csv.NewReader(bytes.NewReader(contents)).Read()
	if err == io.EOF {
		return fmt.Errorf("%w: empty table", ErrMissingColumn)
	} else if err != nil {
		return err
	}

	present := map[string]bool{}
	for _, column := range header {
		present[strings.TrimSpace(column)] = true
	}

	for _, column := range requiredColumns {
		if !present[column] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	return nil
}
