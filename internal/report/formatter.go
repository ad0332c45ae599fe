// Package report merges classified positions with resolved prices into the
// final record set handed to the presentation layer. Every numeric field
// is run through safe coercion so the UI never sees NaN or Infinity.
package report

import (
	"math"

	"github.com/eddiefleurent/ttc_positions/internal/models"
	"github.com/eddiefleurent/ttc_positions/internal/positions"
	"github.com/eddiefleurent/ttc_positions/internal/resolver"
)

// Row is one ordered output tuple. The presentation layer indexes columns
// positionally, so the column order in each set is part of the contract:
//
//	positions:       symbol, shares, currentPrice, avgCost, dailyChangeAbs,
//	                 dailyChangePct, closePrice, openPrice, openingGap,
//	                 nakedPuts, coveredCalls, uncoveredCalls,
//	                 sharesAvailable, source, dataAge
//	incomplete_lots: symbol, incompleteShares, currentPrice, avgCost,
//	                 dailyChangeAbs, dailyChangePct, closePrice, openPrice,
//	                 openingGap, source, dataAge
//	watchlist:       symbol, currentPrice, dailyChangeAbs, dailyChangePct,
//	                 closePrice, openPrice, openingGap, source, dataAge
type Row []interface{}

// Report is the complete refresh output.
type Report struct {
	Positions      []Row  `json:"positions"`
	IncompleteLots []Row  `json:"incomplete_lots"`
	Watchlist      []Row  `json:"watchlist"`
	Degraded       bool   `json:"degraded"`
	DegradedReason string `json:"degraded_reason,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Empty returns a report with no rows, used for structured failures.
func Empty() *Report {
	return &Report{
		Positions:      []Row{},
		IncompleteLots: []Row{},
		Watchlist:      []Row{},
	}
}

// marketFields is the per-symbol derived pricing block shared by all three
// row sets.
type marketFields struct {
	current   float64
	change    float64
	changePct float64
	close     float64
	open      float64
	gap       float64
	source    string
	age       string
}

func deriveMarketFields(res resolver.Resolution) marketFields {
	current := SafeNumber(res.Snapshot.Last)
	change := SafeNumber(res.Snapshot.ChangeAbs)
	closePrice := SafeNumber(res.Snapshot.Close)
	openPrice := SafeNumber(res.Snapshot.Open)

	// Guard against an accidental zero baseline when the feed reports
	// change equal to the price (a fresh listing or bad tick).
	baseline := current - change
	if current == change {
		baseline = current
	}

	gap := 0.0
	if closePrice != 0 {
		gap = SafeNumber(openPrice - closePrice)
	}

	return marketFields{
		current:   current,
		change:    change,
		changePct: SafeDivide(change, baseline),
		close:     closePrice,
		open:      openPrice,
		gap:       gap,
		source:    string(res.Snapshot.Source),
		age:       res.Age,
	}
}

// resolutionFor looks up a symbol's resolution, substituting an
// unavailable snapshot when the resolver never saw the symbol (e.g.
// CUSIP-shaped positions excluded from the universe) so the source column
// is always a real tag.
func resolutionFor(prices map[string]resolver.Resolution, symbol string) resolver.Resolution {
	if res, ok := prices[symbol]; ok {
		return res
	}
	return resolver.Resolution{Snapshot: models.UnavailableSnapshot(symbol)}
}

// BuildReport combines a classification with the resolved prices. Symbols
// the resolver never saw come out as unavailable zero rows rather than
// being dropped.
func BuildReport(cls positions.Classification, prices map[string]resolver.Resolution,
	degraded bool, degradedReason string) *Report {
	out := Empty()
	out.Degraded = degraded
	out.DegradedReason = degradedReason

	for _, stock := range cls.Stocks {
		m := deriveMarketFields(resolutionFor(prices, stock.Symbol))
		out.Positions = append(out.Positions, Row{
			stock.Symbol,
			stock.Shares,
			m.current,
			SafeNumber(stock.AvgCost),
			m.change,
			m.changePct,
			m.close,
			m.open,
			m.gap,
			stock.NakedPuts,
			stock.CoveredCalls,
			stock.UncoveredCalls,
			stock.SharesAvailable,
			m.source,
			m.age,
		})
	}

	for _, stock := range cls.IncompleteLots {
		m := deriveMarketFields(resolutionFor(prices, stock.Symbol))
		out.IncompleteLots = append(out.IncompleteLots, Row{
			stock.Symbol,
			stock.IncompleteLotShares,
			m.current,
			SafeNumber(stock.AvgCost),
			m.change,
			m.changePct,
			m.close,
			m.open,
			m.gap,
			m.source,
			m.age,
		})
	}

	for _, symbol := range cls.WatchOnly {
		m := deriveMarketFields(resolutionFor(prices, symbol))
		out.Watchlist = append(out.Watchlist, Row{
			symbol,
			m.current,
			m.change,
			m.changePct,
			m.close,
			m.open,
			m.gap,
			m.source,
			m.age,
		})
	}

	return out
}

// SafeDivide divides a by b, returning 0 for zero operands and for any
// non-finite result.
func SafeDivide(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	result := a / b
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0
	}
	return result
}

// SafeNumber coerces NaN and Infinity to 0.
func SafeNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
