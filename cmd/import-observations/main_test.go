package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	input := `licence_number,street_name,observed_at
pb12-x 1234, Java ,2023-11-20 12:00:00
MH12X1234,Azure,2023-11-20T11:00:00Z
HP12X1234,Jakarta,
X,Java,
PB13X1234,,
PB14X1234,Java,yesterday
`

	records, rejected, err := readCSV(strings.NewReader(input), loc)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "PB12X1234", records[0].LicenceNumber)
	assert.Equal(t, "Java", records[0].StreetName)
	require.NotNil(t, records[0].ObservedAt)
	assert.True(t, time.Date(2023, 11, 20, 11, 0, 0, 0, time.UTC).Equal(*records[0].ObservedAt))
	assert.True(t, time.Date(2023, 11, 20, 11, 0, 0, 0, time.UTC).Equal(*records[1].ObservedAt))
	assert.Nil(t, records[2].ObservedAt)

	assert.Equal(t, []rejectedRow{
		{Line: 5, Reason: "invalid licence number"},
		{Line: 6, Reason: "missing street name"},
		{Line: 7, Reason: "invalid observed_at"},
	}, rejected)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, _, err := readCSV(strings.NewReader("plate,street\nPB12X1234,Java\n"), time.UTC)
	assert.EqualError(t, err, "missing licence_number column")
}

func TestUpload_Batches(t *testing.T) {
	var (
		mu      sync.Mutex
		batches [][]record
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/loadParkingRecordList", r.URL.Path)
		var batch []record
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&batch)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		batches = append(batches, batch)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	records := make([]record, 5)
	for i := range records {
		records[i] = record{LicenceNumber: "PB12X123" + string(rune('0'+i)), StreetName: "Java"}
	}

	sent, err := upload(context.Background(), srv.Client(), srv.URL+"/", records, 2, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 5, sent)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, "PB12X1234", batches[2][0].LicenceNumber)
}

func TestUpload_StopsOnRejectedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":["Street Name is required"]}`))
	}))
	defer srv.Close()

	records := []record{{LicenceNumber: "PB12X1234", StreetName: "Java"}}
	sent, err := upload(context.Background(), srv.Client(), srv.URL, records, 10, zerolog.Nop())

	assert.Zero(t, sent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Street Name is required")
}
