// Package goals reads revenue targets and team rosters from the shared
// Google Sheets workbook. The workbook is maintained by the commercial
// team; this package only ever reads it.
package goals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/andeanvet/salescope/internal/common"
	"github.com/andeanvet/salescope/internal/model"
)

const (
	tabLineGoals   = "LineGoals"
	tabTeams       = "Teams"
	tabSellerGoals = "SellerGoals"

	// Targets filed under genvet fold into this line, matching how the
	// sales side collapses third-party labels.
	consolidatedLine = "terceros"

	defaultMemoTTL = 5 * time.Minute
)

// Config holds the goal workbook settings.
type Config struct {
	ServiceAccountPath string
	SpreadsheetID      string
	MemoTTL            time.Duration
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ServiceAccountPath == "" {
		return fmt.Errorf("%w: goal sheet service account path is empty", common.ErrInvalidConfig)
	}
	if c.SpreadsheetID == "" {
		return fmt.Errorf("%w: goal sheet spreadsheet id is empty", common.ErrInvalidConfig)
	}
	return nil
}

// valuesGetter is the slice of the Sheets API the store needs.
type valuesGetter interface {
	Get(ctx context.Context, spreadsheetID, readRange string) ([][]any, error)
}

type apiGetter struct {
	svc *sheets.Service
}

func (g apiGetter) Get(ctx context.Context, spreadsheetID, readRange string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

type memoEntry struct {
	fetchedAt time.Time
	values    [][]any
}

// Store reads the goal workbook with per-tab memoization so one CLI
// invocation fetches each tab at most once.
type Store struct {
	getter        valuesGetter
	clock         func() time.Time
	memo          map[string]memoEntry
	spreadsheetID string
	ttl           time.Duration
	mu            sync.Mutex
}

// NewStore authenticates against the Sheets API with a service-account
// key and returns a ready store.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jsonKey, err := os.ReadFile(cfg.ServiceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account key file: %w", err)
	}
	jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account key: %w", err)
	}

	httpClient := oauth2.NewClient(ctx, jwtConfig.TokenSource(ctx))
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return newStore(apiGetter{svc: svc}, cfg), nil
}

func newStore(getter valuesGetter, cfg Config) *Store {
	ttl := cfg.MemoTTL
	if ttl <= 0 {
		ttl = defaultMemoTTL
	}
	return &Store{
		getter:        getter,
		clock:         time.Now,
		memo:          make(map[string]memoEntry),
		spreadsheetID: cfg.SpreadsheetID,
		ttl:           ttl,
	}
}

// ReadLineGoals returns period key ("YYYY-MM") to per-line targets.
// Rows for the same period and line sum, which is what folds a genvet
// row into an existing terceros one.
func (s *Store) ReadLineGoals(ctx context.Context) (map[string]model.LineGoals, error) {
	rows, err := s.readTab(ctx, tabLineGoals)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.LineGoals)
	for i, row := range dataRows(rows) {
		period, ok := cellPeriod(row, 0)
		line := model.LineID(cellString(row, 1))
		if !ok || line == "" {
			slog.Warn("skipping malformed goal row", "tab", tabLineGoals, "row", i+2)
			continue
		}
		if line == "genvet" {
			line = consolidatedLine
		}

		goals, ok := out[period]
		if !ok {
			goals = model.LineGoals{
				Goals:    make(map[string]float64),
				IPNGoals: make(map[string]float64),
			}
			out[period] = goals
		}
		goals.Goals[line] += cellAmount(row, 2)
		goals.IPNGoals[line] += cellAmount(row, 3)
	}
	return out, nil
}

// ReadTeams returns team id to member seller ids, in sheet order.
func (s *Store) ReadTeams(ctx context.Context) (map[string][]int64, error) {
	rows, err := s.readTab(ctx, tabTeams)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]int64)
	for i, row := range dataRows(rows) {
		team := strings.ToLower(cellString(row, 0))
		seller, ok := cellID(row, 1)
		if team == "" || !ok {
			slog.Warn("skipping malformed team row", "tab", tabTeams, "row", i+2)
			continue
		}
		out[team] = append(out[team], seller)
	}
	return out, nil
}

// ReadSellerGoals returns team id to seller id to period key to target.
func (s *Store) ReadSellerGoals(ctx context.Context) (model.SellerGoals, error) {
	rows, err := s.readTab(ctx, tabSellerGoals)
	if err != nil {
		return nil, err
	}

	out := make(model.SellerGoals)
	for i, row := range dataRows(rows) {
		team := strings.ToLower(cellString(row, 0))
		seller, idOK := cellID(row, 1)
		period, periodOK := cellPeriod(row, 2)
		if team == "" || !idOK || !periodOK {
			slog.Warn("skipping malformed seller goal row", "tab", tabSellerGoals, "row", i+2)
			continue
		}

		bySeller, ok := out[team]
		if !ok {
			bySeller = make(map[int64]map[string]model.SellerGoal)
			out[team] = bySeller
		}
		byPeriod, ok := bySeller[seller]
		if !ok {
			byPeriod = make(map[string]model.SellerGoal)
			bySeller[seller] = byPeriod
		}
		byPeriod[period] = model.SellerGoal{
			Goal:    cellAmount(row, 3),
			IPNGoal: cellAmount(row, 4),
		}
	}
	return out, nil
}

// readTab fetches a whole tab, memoized. A tab missing from the
// workbook is an empty result, not an error.
func (s *Store) readTab(ctx context.Context, tab string) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.memo[tab]; ok && s.clock().Sub(entry.fetchedAt) < s.ttl {
		return entry.values, nil
	}

	values, err := s.getter.Get(ctx, s.spreadsheetID, tab)
	if err != nil {
		// The API answers 400 for a range naming a tab that does not exist.
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 400 {
			slog.Warn("goal workbook tab missing", "tab", tab)
			values = nil
		} else {
			return nil, fmt.Errorf("reading goal tab %s: %w", tab, err)
		}
	}

	s.memo[tab] = memoEntry{values: values, fetchedAt: s.clock()}
	return values, nil
}

// dataRows drops the header row.
func dataRows(rows [][]any) [][]any {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func cellString(row []any, idx int) string {
	if idx >= len(row) {
		return ""
	}
	switch v := row[idx].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// cellPeriod accepts only YYYY-MM keys.
func cellPeriod(row []any, idx int) (string, bool) {
	s := cellString(row, idx)
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", false
	}
	return s, true
}

func cellID(row []any, idx int) (int64, bool) {
	if idx >= len(row) {
		return 0, false
	}
	switch v := row[idx].(type) {
	case float64:
		return int64(v), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// cellAmount parses a goal cell. Formatted reads arrive as grouped
// strings ("1,234,567.89"), unformatted ones as numbers.
func cellAmount(row []any, idx int) float64 {
	if idx >= len(row) {
		return 0
	}
	switch v := row[idx].(type) {
	case float64:
		return v
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if cleaned == "" {
			return 0
		}
		d, err := decimal.NewFromString(cleaned)
		if err != nil {
			slog.Warn("unparseable goal amount", "value", v)
			return 0
		}
		f, _ := d.Float64()
		return f
	default:
		return 0
	}
}
