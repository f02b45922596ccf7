package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/pkg/logger"
)

func newTestTracker(t *testing.T, handler http.HandlerFunc) *SheetsTracker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tr, err := NewSheetsTracker(config.TrackerConfig{
		Enabled:       true,
		SpreadsheetID: "sheet-1",
		SheetName:     "Runs",
	}, logger.Nop(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	require.NotNil(t, tr)
	return tr
}

func TestNewSheetsTracker_Disabled(t *testing.T) {
	tr, err := NewSheetsTracker(config.TrackerConfig{}, logger.Nop())
	assert.NoError(t, err)
	assert.Nil(t, tr)
}

func TestNewSheetsTracker_NoCredentials(t *testing.T) {
	_, err := NewSheetsTracker(config.TrackerConfig{Enabled: true, SpreadsheetID: "x"}, logger.Nop())
	assert.Error(t, err)
}

func TestAppendRun(t *testing.T) {
	var body struct {
		Values [][]interface{} `json:"values"`
	}
	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"), r.URL.Path)
		assert.Contains(t, r.URL.Path, "/v4/spreadsheets/sheet-1/values/")
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{}`))
	})

	run := &models.RunRecord{
		Trend:           "Space",
		TrendSource:     "google",
		CandidateTrends: models.StringSlice{"Space", "Mars"},
		Content:         "🌍 Space matters! Join the discussion. #Space",
		ContentOrigin:   models.ContentFallback,
		Outcome:         models.PostOutcomePublished,
		PostID:          "42",
		Attempts:        2,
		DurationMs:      2500,
		CreatedAt:       time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, tr.AppendRun(context.Background(), run))

	require.Len(t, body.Values, 1)
	row := body.Values[0]
	require.Len(t, row, len(SheetColumns))
	assert.Equal(t, "2026-03-01T12:00:00Z", row[0])
	assert.Equal(t, "Space, Mars", row[3])
	assert.Equal(t, "published", row[6])
	assert.Equal(t, "https://twitter.com/i/web/status/42", row[8])
	assert.Equal(t, "2.5", row[12])
}

func TestRecentRuns(t *testing.T) {
	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"values":[
			["2026-03-01T12:00:00Z","AI","google","AI, Mars","generated","anthropic:claude","published","1","u","1","","false","1.0","x"],
			["short"],
			["2026-03-02T12:00:00Z","Mars","fallback","","fallback","","skipped","","","0","","true","0.5","y"]
		]}`))
	})

	runs, err := tr.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "Mars", runs[0].Trend)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, models.PostOutcomeSkipped, runs[0].Outcome)
	assert.Equal(t, 500*time.Millisecond, runs[0].Duration)

	runs, err = tr.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, []string{"AI", "Mars"}, runs[0].Candidates)
	assert.Equal(t, 1, runs[0].Attempts)
}

func TestInitializeSheet_CreatesSheetAndHeaders(t *testing.T) {
	var calls []string
	tr := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/spreadsheets/sheet-1"):
			_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"Other"}}]}`))
		case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			_, _ = w.Write([]byte(`{}`))
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"values":[]}`))
		case r.Method == http.MethodPut:
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, tr.InitializeSheet(context.Background()))
	require.Len(t, calls, 4)
	assert.True(t, strings.HasSuffix(calls[1], ":batchUpdate"))
	assert.True(t, strings.HasPrefix(calls[3], http.MethodPut))
}
