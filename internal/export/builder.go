package export

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradejournal/internal/models"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
)

const (
	TypeTrades         = "trades"
	TypeGoals          = "goals"
	TypeDailyPnL       = "dailyPnl"
	TypeTagPerformance = "tagPerformance"
	TypePropEvaluation = "propEvaluation"
	TypeChartEquity    = "chartEquity"

	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
	FormatPNG  = "png"
)

// Types lists the accepted export types in display order.
func Types() []string {
	return []string{TypeTrades, TypeGoals, TypeDailyPnL, TypeTagPerformance, TypePropEvaluation, TypeChartEquity}
}

func validType(t string) bool {
	for _, v := range Types() {
		if v == t {
			return true
		}
	}
	return false
}

func validFormat(f string) bool {
	switch f {
	case FormatCSV, FormatJSON, FormatXLSX, FormatPNG:
		return true
	}
	return false
}

// Params is the type-dependent request payload stored on the job row. Only
// the trades builder reads all of it; the others ignore unknown fields.
type Params struct {
	From            *time.Time `json:"from,omitempty"`
	To              *time.Time `json:"to,omitempty"`
	TagIDs          []uint64   `json:"tag_ids,omitempty"`
	SelectedColumns []string   `json:"selected_columns,omitempty"`
}

// Table is the format-independent build result.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Stream is a lazy, finite producer of row chunks. Next returns a nil chunk
// once exhausted; it is not restartable.
type Stream struct {
	Headers []string
	Next    func(ctx context.Context) ([][]string, error)
}

// tradeColumns is the canonical column order for the trades export.
var tradeColumns = []string{
	"id", "instrument", "direction", "status", "quantity",
	"entry_price", "exit_price", "entry_at", "exit_at",
	"fees", "pnl", "tags", "notes",
}

type Builder struct {
	Repo   repository.Repository
	Logger *zap.Logger

	// StreamPageSize bounds each chunk of a streamed trades export.
	StreamPageSize int
}

func (b *Builder) pageSize() int {
	if b == nil || b.StreamPageSize <= 0 {
		return 500
	}
	return b.StreamPageSize
}

// BuildTable materializes the full table for an export type. The trades
// export also has a streaming variant, TradeStream, used by the worker when
// the row estimate crosses the configured threshold.
func (b *Builder) BuildTable(ctx context.Context, userID uint64, typ string, params Params) (Table, error) {
	switch typ {
	case TypeTrades:
		return b.buildTrades(ctx, userID, params)
	case TypeGoals:
		return b.buildGoals(ctx, userID)
	case TypeDailyPnL:
		return b.buildDailyPnL(ctx, userID, params)
	case TypeTagPerformance:
		return b.buildTagPerformance(ctx, userID, params)
	case TypePropEvaluation:
		return b.buildPropEvaluations(ctx, userID)
	case TypeChartEquity:
		return b.buildEquitySeries(ctx, userID, params)
	default:
		return Table{}, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
}

// EstimateRows returns the row count a trades export would produce, used to
// decide between the materialized and streamed paths.
func (b *Builder) EstimateRows(ctx context.Context, userID uint64, typ string, params Params) (int64, error) {
	if typ != TypeTrades {
		return 0, nil
	}
	return b.Repo.CountTrades(ctx, tradeListParams(userID, params, 0, 0))
}

func tradeListParams(userID uint64, params Params, limit, offset int) repository.ListTradesParams {
	asc := true
	return repository.ListTradesParams{
		UserID:  userID,
		Limit:   limit,
		Offset:  offset,
		Since:   params.From,
		Until:   params.To,
		TagIDs:  params.TagIDs,
		OrderBy: "entry_at",
		Asc:     &asc,
	}
}

// selectColumns intersects the requested allow-list with the canonical order.
// Unknown names are dropped silently; an empty request keeps everything.
func selectColumns(requested []string) []string {
	if len(requested) == 0 {
		return tradeColumns
	}
	allowed := map[string]bool{}
	for _, c := range requested {
		allowed[c] = true
	}
	var out []string
	for _, c := range tradeColumns {
		if allowed[c] {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return tradeColumns
	}
	return out
}

func tradeRow(t models.Trade, columns []string) []string {
	full := map[string]string{
		"id":          strconv.FormatUint(t.ID, 10),
		"instrument":  t.Instrument.Symbol,
		"direction":   t.Direction,
		"status":      t.Status,
		"quantity":    strconv.FormatInt(t.Quantity, 10),
		"entry_price": t.EntryPrice.String(),
		"exit_price":  "",
		"entry_at":    t.EntryAt.UTC().Format(time.RFC3339),
		"exit_at":     "",
		"fees":        t.Fees.String(),
		"pnl":         "",
		"tags":        joinTags(t.Tags),
		"notes":       t.Notes,
	}
	if t.ExitPrice != nil {
		full["exit_price"] = t.ExitPrice.String()
	}
	if t.ExitAt != nil {
		full["exit_at"] = t.ExitAt.UTC().Format(time.RFC3339)
	}
	if realized := pnl.ForTrade(t); realized != nil {
		full["pnl"] = realized.String()
	}
	row := make([]string, 0, len(columns))
	for _, c := range columns {
		row = append(row, full[c])
	}
	return row
}

func joinTags(tags []models.Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return strings.Join(names, ",")
}

func (b *Builder) buildTrades(ctx context.Context, userID uint64, params Params) (Table, error) {
	columns := selectColumns(params.SelectedColumns)
	trades, err := b.Repo.ListTrades(ctx, tradeListParams(userID, params, 0, 0))
	if err != nil {
		return Table{}, err
	}
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, tradeRow(t, columns))
	}
	return Table{Headers: columns, Rows: rows}, nil
}

// TradeStream pages through the trades result set lazily.
func (b *Builder) TradeStream(userID uint64, params Params) *Stream {
	columns := selectColumns(params.SelectedColumns)
	offset := 0
	done := false
	return &Stream{
		Headers: columns,
		Next: func(ctx context.Context) ([][]string, error) {
			if done {
				return nil, nil
			}
			page, err := b.Repo.ListTrades(ctx, tradeListParams(userID, params, b.pageSize(), offset))
			if err != nil {
				return nil, err
			}
			if len(page) == 0 {
				done = true
				return nil, nil
			}
			offset += len(page)
			if len(page) < b.pageSize() {
				done = true
			}
			chunk := make([][]string, 0, len(page))
			for _, t := range page {
				chunk = append(chunk, tradeRow(t, columns))
			}
			return chunk, nil
		},
	}
}

func (b *Builder) buildGoals(ctx context.Context, userID uint64) (Table, error) {
	goals, err := b.Repo.ListGoals(ctx, repository.ListGoalsParams{UserID: userID})
	if err != nil {
		return Table{}, err
	}
	headers := []string{"id", "type", "period", "target_value", "current_value", "start_date", "end_date", "achieved_at"}
	rows := make([][]string, 0, len(goals))
	for _, g := range goals {
		achieved := ""
		if g.AchievedAt != nil {
			achieved = g.AchievedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			strconv.FormatUint(g.ID, 10),
			g.Type,
			g.Period,
			formatFloat(g.TargetValue),
			formatFloat(g.CurrentValue),
			g.StartDate.UTC().Format("2006-01-02"),
			g.EndDate.UTC().Format("2006-01-02"),
			achieved,
		})
	}
	return Table{Headers: headers, Rows: rows}, nil
}

func (b *Builder) buildDailyPnL(ctx context.Context, userID uint64, params Params) (Table, error) {
	series, err := b.Repo.ListDailyEquity(ctx, userID, repository.ListDailyEquityParams{From: params.From, Until: params.To})
	if err != nil {
		return Table{}, err
	}
	headers := []string{"day", "realized_pnl", "cumulative_equity", "trade_count"}
	rows := make([][]string, 0, len(series))
	for _, d := range series {
		rows = append(rows, []string{
			d.Day.UTC().Format("2006-01-02"),
			d.RealizedPnL.String(),
			d.CumulativeEquity.String(),
			strconv.Itoa(d.TradeCount),
		})
	}
	return Table{Headers: headers, Rows: rows}, nil
}

func (b *Builder) buildTagPerformance(ctx context.Context, userID uint64, params Params) (Table, error) {
	closedOnly := tradeListParams(userID, params, 0, 0)
	closedOnly.ClosedOnly = true
	trades, err := b.Repo.ListTrades(ctx, closedOnly)
	if err != nil {
		return Table{}, err
	}
	type bucket struct {
		trades int
		wins   int
		net    decimal.Decimal
	}
	buckets := map[string]*bucket{}
	var order []string
	for _, t := range trades {
		realized := pnl.ForTrade(t)
		if realized == nil {
			continue
		}
		for _, tag := range t.Tags {
			bk := buckets[tag.Name]
			if bk == nil {
				bk = &bucket{}
				buckets[tag.Name] = bk
				order = append(order, tag.Name)
			}
			bk.trades++
			if realized.IsPositive() {
				bk.wins++
			}
			bk.net = bk.net.Add(*realized)
		}
	}
	headers := []string{"tag", "trades", "wins", "losses", "net_pnl", "win_rate"}
	rows := make([][]string, 0, len(order))
	for _, name := range order {
		bk := buckets[name]
		winRate := float64(bk.wins) / float64(bk.trades) * 100
		rows = append(rows, []string{
			name,
			strconv.Itoa(bk.trades),
			strconv.Itoa(bk.wins),
			strconv.Itoa(bk.trades - bk.wins),
			bk.net.String(),
			formatFloat(winRate),
		})
	}
	return Table{Headers: headers, Rows: rows}, nil
}

func (b *Builder) buildPropEvaluations(ctx context.Context, userID uint64) (Table, error) {
	evals, err := b.Repo.ListPropEvaluations(ctx, userID)
	if err != nil {
		return Table{}, err
	}
	headers := []string{"id", "firm", "phase", "status", "account_size", "profit_target", "cumulative_profit", "start_date", "end_date"}
	rows := make([][]string, 0, len(evals))
	for _, e := range evals {
		end := ""
		if e.EndDate != nil {
			end = e.EndDate.UTC().Format("2006-01-02")
		}
		rows = append(rows, []string{
			strconv.FormatUint(e.ID, 10),
			e.FirmName,
			e.Phase,
			e.Status,
			e.AccountSize.String(),
			e.ProfitTarget.String(),
			e.CumulativeProfit.String(),
			e.StartDate.UTC().Format("2006-01-02"),
			end,
		})
	}
	return Table{Headers: headers, Rows: rows}, nil
}

// buildEquitySeries backs both the chartEquity PNG render and its tabular
// fallback formats.
func (b *Builder) buildEquitySeries(ctx context.Context, userID uint64, params Params) (Table, error) {
	series, err := b.Repo.ListDailyEquity(ctx, userID, repository.ListDailyEquityParams{From: params.From, Until: params.To})
	if err != nil {
		return Table{}, err
	}
	headers := []string{"day", "equity"}
	rows := make([][]string, 0, len(series))
	for _, d := range series {
		rows = append(rows, []string{
			d.Day.UTC().Format("2006-01-02"),
			d.CumulativeEquity.String(),
		})
	}
	return Table{Headers: headers, Rows: rows}, nil
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "Inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
