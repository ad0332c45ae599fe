// Package positions converts raw broker positions into per-symbol coverage
// analytics: complete lots, covered and uncovered calls, naked puts, and
// the shares left uncommitted.
package positions

import (
	"sort"

	"github.com/eddiefleurent/ttc_positions/internal/models"
)

// StockAnalytics is the derived coverage record for one underlying with a
// stock position. It is recomputed every refresh and never persisted.
type StockAnalytics struct {
	Symbol              string
	Shares              int64
	AvgCost             float64
	CompleteLots        int64 // in shares, e.g. 250 shares -> 200
	IncompleteLotShares int64 // e.g. 250 shares -> 50
	CoveredCalls        int64 // contracts
	UncoveredCalls      int64 // contracts
	NakedPuts           int64 // contracts
	SharesAvailable     int64
}

// Classification is the full output of one classification pass.
type Classification struct {
	// Stocks holds one record per underlying with a stock position,
	// ordered by symbol.
	Stocks []StockAnalytics
	// IncompleteLots holds the subset of Stocks with a partial lot.
	IncompleteLots []StockAnalytics
	// WatchOnly lists watchlist symbols with no current stock position,
	// in watchlist order.
	WatchOnly []string
	// Symbols is the price resolution universe: every equity-like
	// position symbol plus the watchlist, deduplicated and sorted.
	Symbols []string
}

// Classify derives coverage analytics from the raw position list and the
// (already extended) watchlist.
//
// Instrument types other than stock and option are skipped entirely; they
// never fail the pass. CUSIP-shaped symbols are excluded from the price
// resolution universe.
func Classify(raw []models.Position, watch []string) Classification {
	type optionTotals struct {
		calls int64
		puts  int64
	}

	stocks := make(map[string]models.Position)
	options := make(map[string]optionTotals)
	universe := make(map[string]bool)

	for _, pos := range raw {
		switch {
		case pos.IsStock():
			stocks[pos.Symbol] = pos
		case pos.IsOption():
			totals := options[pos.Symbol]
			switch pos.Right {
			case models.RightCall:
				totals.calls += pos.Quantity
			case models.RightPut:
				totals.puts += pos.Quantity
			}
			options[pos.Symbol] = totals
		default:
			// bonds and other instruments stay out of the analytics
			// universe entirely
			continue
		}
		if !models.IsCUSIPLike(pos.Symbol) {
			universe[pos.Symbol] = true
		}
	}

	out := Classification{}

	stockSymbols := make([]string, 0, len(stocks))
	for symbol := range stocks {
		stockSymbols = append(stockSymbols, symbol)
	}
	sort.Strings(stockSymbols)

	for _, symbol := range stockSymbols {
		stock := stocks[symbol]
		analytics := classifyOne(stock, options[symbol].calls, options[symbol].puts)
		out.Stocks = append(out.Stocks, analytics)
		if analytics.IncompleteLotShares > 0 {
			out.IncompleteLots = append(out.IncompleteLots, analytics)
		}
	}

	for _, symbol := range watch {
		if models.IsCUSIPLike(symbol) {
			continue
		}
		universe[symbol] = true
		if _, held := stocks[symbol]; !held {
			out.WatchOnly = append(out.WatchOnly, symbol)
		}
	}

	out.Symbols = make([]string, 0, len(universe))
	for symbol := range universe {
		out.Symbols = append(out.Symbols, symbol)
	}
	sort.Strings(out.Symbols)

	return out
}

func classifyOne(stock models.Position, callQty, putQty int64) StockAnalytics {
	shares := stock.Quantity
	absShares := abs(shares)

	completeLots := (absShares / models.SharesPerContract) * models.SharesPerContract
	incomplete := absShares % models.SharesPerContract

	var coveredCalls, uncoveredCalls int64
	if shares > 0 {
		lots := completeLots / models.SharesPerContract
		coveredCalls = min64(lots, abs(callQty))
		uncoveredCalls = max64(0, abs(callQty)-lots)
	} else {
		// short or flat stock cannot cover anything
		coveredCalls = 0
		uncoveredCalls = abs(callQty)
	}

	// Puts are never covered by stock in this model, even when an
	// offsetting short stock position exists.
	nakedPuts := abs(putQty)

	sharesAvailable := shares -
		models.SharesPerContract*coveredCalls -
		models.SharesPerContract*uncoveredCalls

	return StockAnalytics{
		Symbol:              stock.Symbol,
		Shares:              shares,
		AvgCost:             stock.AvgCost,
		CompleteLots:        completeLots,
		IncompleteLotShares: incomplete,
		CoveredCalls:        coveredCalls,
		UncoveredCalls:      uncoveredCalls,
		NakedPuts:           nakedPuts,
		SharesAvailable:     sharesAvailable,
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
