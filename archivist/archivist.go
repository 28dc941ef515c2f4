package archivist

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"chronoreel-pipeline/types"
)

// ErrDuplicate means a scenario with the same premise already has a row.
var ErrDuplicate = errors.New("premise already recorded")

const worksheetTitle = "Scenarios"

// headers is the ledger's column layout. Order matters: every reader
// and writer maps by position, so this slice is the single source of
// truth for the row shape.
var headers = []string{
	"id", "premise", "location_name", "location_prompt",
	"stage_1_year", "stage_1_label", "stage_1_description", "stage_1_mood",
	"stage_2_year", "stage_2_label", "stage_2_description", "stage_2_mood",
	"stage_3_year", "stage_3_label", "stage_3_description", "stage_3_mood",
	"status", "created_at", "video_url", "cost_usd",
}

const (
	colStatus   = 17 // Q
	colVideoURL = 19 // S
	colCost     = 20 // T
)

// Archivist keeps the scenario ledger in a Google Sheet. The sheet is
// both the duplicate-detection index and the resume checkpoint.
type Archivist struct {
	svc           *sheets.Service
	spreadsheetID string
}

// New builds a Sheets client. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS or a local credentials.json, falling
// back to ambient application-default credentials.
func New(ctx context.Context, spreadsheetID string) (*Archivist, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("google_sheet_id not configured")
	}

	var opts []option.ClientOption
	if path := credentialsPath(); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	a := &Archivist{svc: svc, spreadsheetID: spreadsheetID}
	if err := a.ensureWorksheet(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func credentialsPath() string {
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		return path
	}
	if _, err := os.Stat("credentials.json"); err == nil {
		return "credentials.json"
	}
	return ""
}

// ensureWorksheet creates the ledger tab and header row on first use.
func (a *Archivist) ensureWorksheet(ctx context.Context) error {
	meta, err := a.svc.Spreadsheets.Get(a.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("open spreadsheet: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties.Title == worksheetTitle {
			return nil
		}
	}

	log.Printf("[archivist] creating worksheet %q...", worksheetTitle)
	_, err = a.svc.Spreadsheets.BatchUpdate(a.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: worksheetTitle},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create worksheet: %w", err)
	}

	headerRow := make([]any, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	_, err = a.svc.Spreadsheets.Values.Update(a.spreadsheetID, worksheetTitle+"!A1",
		&sheets.ValueRange{Values: [][]any{headerRow}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header row: %w", err)
	}
	return nil
}

// StoreScenario appends a new row, refusing duplicate premises.
func (a *Archivist) StoreScenario(ctx context.Context, scenario *types.Scenario) error {
	premises, err := a.AllPremises(ctx)
	if err != nil {
		return err
	}
	for _, p := range premises {
		if strings.EqualFold(strings.TrimSpace(p), strings.TrimSpace(scenario.Premise)) {
			return ErrDuplicate
		}
	}

	_, err = a.svc.Spreadsheets.Values.Append(a.spreadsheetID, worksheetTitle+"!A1",
		&sheets.ValueRange{Values: [][]any{RowFromScenario(scenario)}}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append scenario row: %w", err)
	}
	log.Printf("[archivist] stored scenario %s", scenario.ID)
	return nil
}

// AllPremises lists every existing premise for duplicate avoidance.
func (a *Archivist) AllPremises(ctx context.Context) ([]string, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, worksheetTitle+"!B2:B").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read premises: %w", err)
	}
	premises := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) > 0 {
			if s, ok := row[0].(string); ok && s != "" {
				premises = append(premises, s)
			}
		}
	}
	return premises, nil
}

// GetAllScenarios loads every ledger row.
func (a *Archivist) GetAllScenarios(ctx context.Context) ([]types.Scenario, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, worksheetTitle+"!A2:S").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read scenarios: %w", err)
	}

	scenarios := make([]types.Scenario, 0, len(resp.Values))
	for _, row := range resp.Values {
		s, err := ScenarioFromRow(row)
		if err != nil {
			continue // skip malformed rows rather than fail the run
		}
		scenarios = append(scenarios, *s)
	}
	return scenarios, nil
}

// FindByID returns a scenario row, or nil when absent.
func (a *Archivist) FindByID(ctx context.Context, id string) (*types.Scenario, error) {
	scenarios, err := a.GetAllScenarios(ctx)
	if err != nil {
		return nil, err
	}
	for i := range scenarios {
		if scenarios[i].ID == id {
			return &scenarios[i], nil
		}
	}
	return nil, nil
}

// LatestWithStatus returns the newest row in the given status, for
// phase resumption. Nil when nothing matches.
func (a *Archivist) LatestWithStatus(ctx context.Context, status string) (*types.Scenario, error) {
	scenarios, err := a.GetAllScenarios(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(scenarios) - 1; i >= 0; i-- {
		if scenarios[i].Status == status {
			return &scenarios[i], nil
		}
	}
	return nil, nil
}

// UpdateStatus rewrites the status cell, and the video URL when given.
func (a *Archivist) UpdateStatus(ctx context.Context, scenarioID, status, videoURL string) error {
	rowNum, err := a.findRow(ctx, scenarioID)
	if err != nil {
		return err
	}

	if err := a.updateCell(ctx, rowNum, colStatus, status); err != nil {
		return err
	}
	if videoURL != "" {
		if err := a.updateCell(ctx, rowNum, colVideoURL, videoURL); err != nil {
			return err
		}
	}
	log.Printf("[archivist] %s -> %s", scenarioID, status)
	return nil
}

// UpdateCost records the scenario's total spend in the cost column.
func (a *Archivist) UpdateCost(ctx context.Context, scenarioID string, costUSD float64) error {
	rowNum, err := a.findRow(ctx, scenarioID)
	if err != nil {
		return err
	}
	return a.updateCell(ctx, rowNum, colCost, fmt.Sprintf("%.4f", costUSD))
}

// UpdateFullScenario rewrites the entire row, used after the improver
// and generation phases attach prompts and status changes.
func (a *Archivist) UpdateFullScenario(ctx context.Context, scenario *types.Scenario) error {
	rowNum, err := a.findRow(ctx, scenario.ID)
	if err != nil {
		return err
	}

	rangeRef := fmt.Sprintf("%s!A%d:S%d", worksheetTitle, rowNum, rowNum)
	_, err = a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rangeRef,
		&sheets.ValueRange{Values: [][]any{RowFromScenario(scenario)}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update scenario row: %w", err)
	}
	return nil
}

func (a *Archivist) findRow(ctx context.Context, scenarioID string) (int, error) {
	resp, err := a.svc.Spreadsheets.Values.Get(a.spreadsheetID, worksheetTitle+"!A2:A").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read scenario ids: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 && row[0] == scenarioID {
			return i + 2, nil
		}
	}
	return 0, fmt.Errorf("scenario %s not found in ledger", scenarioID)
}

func (a *Archivist) updateCell(ctx context.Context, rowNum, col int, value string) error {
	rangeRef := fmt.Sprintf("%s!%s%d", worksheetTitle, columnLetter(col), rowNum)
	_, err := a.svc.Spreadsheets.Values.Update(a.spreadsheetID, rangeRef,
		&sheets.ValueRange{Values: [][]any{{value}}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update cell %s: %w", rangeRef, err)
	}
	return nil
}

func columnLetter(col int) string {
	return string(rune('A' + col - 1))
}

// RowFromScenario flattens a scenario into the ledger's column order.
func RowFromScenario(s *types.Scenario) []any {
	row := []any{s.ID, s.Premise, s.LocationName, s.LocationPrompt}
	for _, stage := range s.Stages {
		row = append(row, stage.Year, stage.Label, stage.Description, stage.Mood)
	}
	return append(row, s.Status, s.CreatedAt, s.VideoURL)
}

// ScenarioFromRow rebuilds a scenario from a ledger row. Short rows
// are tolerated because Sheets drops trailing empty cells.
func ScenarioFromRow(row []any) (*types.Scenario, error) {
	cell := func(i int) string {
		if i < len(row) {
			if s, ok := row[i].(string); ok {
				return s
			}
			return fmt.Sprintf("%v", row[i])
		}
		return ""
	}

	if cell(0) == "" {
		return nil, fmt.Errorf("row has no scenario id")
	}

	s := &types.Scenario{
		ID:             cell(0),
		Premise:        cell(1),
		LocationName:   cell(2),
		LocationPrompt: cell(3),
		Status:         cell(16),
		CreatedAt:      cell(17),
		VideoURL:       cell(18),
	}
	for i := 0; i < 3; i++ {
		base := 4 + i*4
		s.Stages[i] = types.StageData{
			Year:        cell(base),
			Label:       cell(base + 1),
			Description: cell(base + 2),
			Mood:        cell(base + 3),
		}
	}
	return s, nil
}
