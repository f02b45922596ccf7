package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/trend-agent/internal/config"
	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/pkg/logger"
)

// SheetColumns defines the column headers for the run tracking sheet
var SheetColumns = []string{
	"Recorded At",
	"Trend",
	"Source",
	"Candidates",
	"Origin",
	"Backend",
	"Outcome",
	"Post ID",
	"Post URL",
	"Attempts",
	"Reason",
	"Dry Run",
	"Duration (s)",
	"Content",
}

const lastColumn = "N"

// TrackedRun represents a run entry in the tracking sheet
type TrackedRun struct {
	RecordedAt time.Time
	Trend      string
	Source     string
	Candidates []string
	Origin     models.ContentOrigin
	Backend    string
	Outcome    models.PostOutcome
	PostID     string
	PostURL    string
	Attempts   int
	Reason     string
	DryRun     bool
	Duration   time.Duration
	Content    string
}

// SheetsTracker mirrors run outcomes into a Google Sheet
type SheetsTracker struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *logger.Logger
}

// NewSheetsTracker creates a new Google Sheets tracker. It returns nil when
// the tracker is disabled. Extra client options are appended after the
// credentials.
func NewSheetsTracker(cfg config.TrackerConfig, log *logger.Logger, opts ...option.ClientOption) (*SheetsTracker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ctx := context.Background()

	var clientOpts []option.ClientOption

	// Try service account JSON first (for env var injection)
	switch {
	case cfg.ServiceAccountJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	case len(opts) == 0:
		return nil, fmt.Errorf("no Google credentials provided: set credentials_file or service_account_json")
	}
	clientOpts = append(clientOpts, opts...)

	srv, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	sheetName := cfg.SheetName
	if sheetName == "" {
		sheetName = "Runs"
	}

	return &SheetsTracker{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
		log:           log.WithComponent("sheets-tracker"),
	}, nil
}

// InitializeSheet creates the sheet and headers if they don't exist
func (t *SheetsTracker) InitializeSheet(ctx context.Context) error {
	if err := t.ensureSheetExists(ctx); err != nil {
		return err
	}

	readRange := fmt.Sprintf("%s!A1:%s1", t.sheetName, lastColumn)
	resp, err := t.service.Spreadsheets.Values.Get(t.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(resp.Values) == 0 {
		t.log.Info().Msg("Initializing sheet with headers")
		return t.writeHeaders(ctx)
	}

	t.log.Debug().Msg("Sheet already has headers")
	return nil
}

// ensureSheetExists creates the sheet if it doesn't exist
func (t *SheetsTracker) ensureSheetExists(ctx context.Context) error {
	spreadsheet, err := t.service.Spreadsheets.Get(t.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == t.sheetName {
			t.log.Debug().Str("sheet", t.sheetName).Msg("Sheet already exists")
			return nil
		}
	}

	t.log.Info().Str("sheet", t.sheetName).Msg("Creating new sheet")
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: t.sheetName,
					},
				},
			},
		},
	}

	if _, err := t.service.Spreadsheets.BatchUpdate(t.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	return nil
}

// writeHeaders writes column headers to the first row
func (t *SheetsTracker) writeHeaders(ctx context.Context) error {
	headerRow := make([]interface{}, 0, len(SheetColumns))
	for _, col := range SheetColumns {
		headerRow = append(headerRow, col)
	}

	writeRange := fmt.Sprintf("%s!A1", t.sheetName)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{headerRow},
	}

	_, err := t.service.Spreadsheets.Values.Update(t.spreadsheetID, writeRange, valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	t.log.Info().Msg("Sheet headers initialized")
	return nil
}

// AppendRun adds one row for a finished run
func (t *SheetsTracker) AppendRun(ctx context.Context, run *models.RunRecord) error {
	tracked := FromRecord(run)

	appendRange := fmt.Sprintf("%s!A:%s", t.sheetName, lastColumn)
	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{toRow(tracked)},
	}

	_, err := t.service.Spreadsheets.Values.Append(t.spreadsheetID, appendRange, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}

	t.log.Debug().
		Str("trend", tracked.Trend).
		Str("outcome", string(tracked.Outcome)).
		Msg("Run tracked")
	return nil
}

// RecentRuns reads back up to limit rows, newest last. Zero means all.
func (t *SheetsTracker) RecentRuns(ctx context.Context, limit int) ([]*TrackedRun, error) {
	readRange := fmt.Sprintf("%s!A2:%s", t.sheetName, lastColumn) // Skip header
	resp, err := t.service.Spreadsheets.Values.Get(t.spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	var runs []*TrackedRun
	for _, row := range resp.Values {
		if run := parseRow(row); run != nil {
			runs = append(runs, run)
		}
	}

	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	return runs, nil
}

// FromRecord converts a history record into a sheet entry
func FromRecord(run *models.RunRecord) *TrackedRun {
	recorded := run.CreatedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}

	return &TrackedRun{
		RecordedAt: recorded,
		Trend:      run.Trend,
		Source:     run.TrendSource,
		Candidates: []string(run.CandidateTrends),
		Origin:     run.ContentOrigin,
		Backend:    run.Backend,
		Outcome:    run.Outcome,
		PostID:     run.PostID,
		PostURL:    PostURL(run.PostID),
		Attempts:   run.Attempts,
		Reason:     run.Reason,
		DryRun:     run.DryRun,
		Duration:   run.Duration(),
		Content:    run.Content,
	}
}

// PostURL links to a published post, empty when there is no id
func PostURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://twitter.com/i/web/status/" + id
}

func toRow(r *TrackedRun) []interface{} {
	return []interface{}{
		formatTime(r.RecordedAt),
		r.Trend,
		r.Source,
		strings.Join(r.Candidates, ", "),
		string(r.Origin),
		r.Backend,
		string(r.Outcome),
		r.PostID,
		r.PostURL,
		r.Attempts,
		r.Reason,
		strconv.FormatBool(r.DryRun),
		strconv.FormatFloat(r.Duration.Seconds(), 'f', 1, 64),
		r.Content,
	}
}

// parseRow parses a sheet row into a TrackedRun
func parseRow(row []interface{}) *TrackedRun {
	if len(row) < 7 {
		return nil
	}

	getString := func(i int) string {
		if i < len(row) {
			return fmt.Sprintf("%v", row[i])
		}
		return ""
	}

	attempts, _ := strconv.Atoi(getString(9))
	dryRun, _ := strconv.ParseBool(getString(11))
	seconds, _ := strconv.ParseFloat(getString(12), 64)
	recorded, _ := time.Parse(time.RFC3339, getString(0))

	var candidates []string
	if s := getString(3); s != "" {
		candidates = strings.Split(s, ", ")
	}

	return &TrackedRun{
		RecordedAt: recorded,
		Trend:      getString(1),
		Source:     getString(2),
		Candidates: candidates,
		Origin:     models.ContentOrigin(getString(4)),
		Backend:    getString(5),
		Outcome:    models.PostOutcome(getString(6)),
		PostID:     getString(7),
		PostURL:    getString(8),
		Attempts:   attempts,
		Reason:     getString(10),
		DryRun:     dryRun,
		Duration:   time.Duration(seconds * float64(time.Second)),
		Content:    getString(13),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
