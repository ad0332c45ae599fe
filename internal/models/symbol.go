package models

// cusipMinLength and cusipMinDigits define the heuristic for identifying
// bond/CUSIP identifiers that show up in equity position feeds.
const (
	cusipMinLength = 8
	cusipMinDigits = 3
)

// IsCUSIPLike reports whether a symbol string looks like a CUSIP or similar
// non-equity identifier (e.g. "912828XG8") rather than a ticker. Such
// symbols are excluded from price resolution and from the watchlist.
func IsCUSIPLike(symbol string) bool {
	if len(symbol) < cusipMinLength {
		return false
	}
	digits := 0
	for _, r := range symbol {
		if r >= '0' && r <= '9' {
			digits++
			if digits >= cusipMinDigits {
				return true
			}
		}
	}
	return false
}
