package models

// PriceKind tags which price the lister quotes.
type PriceKind string

const (
	PriceKindExpected PriceKind = "EXPECTED_PRICE"
	PriceKindRent     PriceKind = "RENT_AMOUNT"
	PriceKindLease    PriceKind = "LEASE_VALUE"
)

// IsValid checks if the price kind is one of the supported enum values.
func (k PriceKind) IsValid() bool {
	switch k {
	case PriceKindExpected, PriceKindRent, PriceKindLease:
		return true
	}
	return false
}

// Pricing is the quoted price: an expected sale price, a rent amount or a
// lease value.
type Pricing struct {
	Kind            PriceKind `json:"kind"`
	Amount          float64   `json:"amount"`
	Negotiable      bool      `json:"negotiable,omitempty"`
	SecurityDeposit float64   `json:"securityDeposit,omitempty"`
	Maintenance     float64   `json:"maintenance,omitempty"`
}

// Value returns the quoted amount when it is usable for comparison.
func (p *Pricing) Value() (float64, bool) {
	if p == nil || !p.Kind.IsValid() || p.Amount <= 0 {
		return 0, false
	}
	return p.Amount, true
}
