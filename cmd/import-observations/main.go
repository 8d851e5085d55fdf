// Command import-observations loads a patrol CSV export into the parking
// service through POST /api/loadParkingRecordList.
//
// Expected columns: licence_number, street_name and optionally observed_at
// (RFC3339 or "2006-01-02 15:04:05" in -tz).
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"parking-service/internal/logger"
	"parking-service/internal/utils"
)

const localLayout = "2006-01-02 15:04:05"

type record struct {
	LicenceNumber string     `json:"licenceNumber"`
	StreetName    string     `json:"streetName"`
	ObservedAt    *time.Time `json:"observedAt,omitempty"`
}

type rejectedRow struct {
	Line   int
	Reason string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "parking service base URL")
	batchSize := flag.Int("batch", 200, "records per request")
	tz := flag.String("tz", "Europe/Amsterdam", "zone for observed_at values without offset")
	dryRun := flag.Bool("dry-run", false, "parse and validate only")
	flag.Parse()

	log := logger.New("development", "info")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: import-observations [flags] <path-to-csv>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatal().Err(err).Str("tz", *tz).Msg("unknown time zone")
	}

	file, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open csv")
	}
	defer file.Close()

	records, rejected, err := readCSV(file, loc)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read csv")
	}
	for _, r := range rejected {
		log.Warn().Int("line", r.Line).Str("reason", r.Reason).Msg("row skipped")
	}
	log.Info().Int("valid", len(records)).Int("skipped", len(rejected)).Msg("csv parsed")

	if *dryRun || len(records) == 0 {
		return
	}

	client := &http.Client{Timeout: 30 * time.Second}
	sent, err := upload(context.Background(), client, *baseURL, records, *batchSize, log)
	if err != nil {
		log.Fatal().Err(err).Int("sent", sent).Msg("import failed")
	}
	log.Info().Int("sent", sent).Msg("import complete")
}

func readCSV(r io.Reader, loc *time.Location) ([]record, []rejectedRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	plateCol, ok := columns["licence_number"]
	if !ok {
		return nil, nil, errors.New("missing licence_number column")
	}
	streetCol, ok := columns["street_name"]
	if !ok {
		return nil, nil, errors.New("missing street_name column")
	}
	timeCol, hasTime := columns["observed_at"]

	var (
		records  []record
		rejected []rejectedRow
		line     = 1
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}

		plate := utils.NormalizePlate(field(row, plateCol))
		if !utils.ValidPlate(plate) {
			rejected = append(rejected, rejectedRow{Line: line, Reason: "invalid licence number"})
			continue
		}
		street := utils.NormalizeStreet(field(row, streetCol))
		if street == "" {
			rejected = append(rejected, rejectedRow{Line: line, Reason: "missing street name"})
			continue
		}

		rec := record{LicenceNumber: plate, StreetName: street}
		if hasTime {
			if raw := field(row, timeCol); raw != "" {
				at, err := parseTime(raw, loc)
				if err != nil {
					rejected = append(rejected, rejectedRow{Line: line, Reason: "invalid observed_at"})
					continue
				}
				rec.ObservedAt = &at
			}
		}
		records = append(records, rec)
	}
	return records, rejected, nil
}

func field(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation(localLayout, raw, loc)
}

func upload(ctx context.Context, client *http.Client, baseURL string, records []record, batchSize int, log zerolog.Logger) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/api/loadParkingRecordList"

	sent := 0
	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		body, err := json.Marshal(records[start:end])
		if err != nil {
			return sent, fmt.Errorf("marshal batch: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return sent, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return sent, fmt.Errorf("post batch: %w", err)
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return sent, fmt.Errorf("batch starting at %d rejected: %s: %s", start, resp.Status, strings.TrimSpace(string(respBody)))
		}

		sent += end - start
		log.Debug().Int("sent", sent).Int("total", len(records)).Msg("batch uploaded")
	}
	return sent, nil
}
