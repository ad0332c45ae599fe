// Package models defines the core data types shared across the positions
// report: raw broker positions and resolved price snapshots.
package models

// InstrumentKind identifies the security type of a broker position.
type InstrumentKind string

const (
	// KindStock is a plain equity position.
	KindStock InstrumentKind = "STK"
	// KindOption is an equity option position.
	KindOption InstrumentKind = "OPT"
)

// OptionRight identifies the right of an option contract.
type OptionRight string

const (
	// RightCall represents a call option.
	RightCall OptionRight = "C"
	// RightPut represents a put option.
	RightPut OptionRight = "P"
)

// SharesPerContract is the number of shares one equity option contract controls.
const SharesPerContract = 100

// Position is a single raw position as reported by the broker.
//
// Quantity is signed: short positions are negative. For options it counts
// contracts, not shares. Right is only meaningful when Kind is KindOption.
type Position struct {
	Symbol   string         `json:"symbol"`
	Kind     InstrumentKind `json:"kind"`
	Quantity int64          `json:"quantity"`
	AvgCost  float64        `json:"avg_cost"`
	Right    OptionRight    `json:"right,omitempty"`
}

// IsStock reports whether the position is a plain equity holding.
func (p *Position) IsStock() bool { return p.Kind == KindStock }

// IsOption reports whether the position is an option contract.
func (p *Position) IsOption() bool { return p.Kind == KindOption }
