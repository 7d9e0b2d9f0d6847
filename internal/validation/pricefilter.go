// Package validation implements the three-stage listing filter:
// price_filter, mechanical, ai. Each stage is a pure function over a
// slice of candidate items; the caller (validationworker) is responsible
// for persisting one ValidationResult row per item per stage.
package validation

import "github.com/avitoscout/orchestrator/internal/domain"

// Item is the in-memory candidate a stage evaluates; it is built from a
// domain.CatalogListing by the caller.
type Item struct {
	AvitoItemID   string
	Title         string
	Snippet       string
	Price         *float64
	SellerReviews *int
}

// StageVerdict is one stage's outcome for one item.
type StageVerdict struct {
	AvitoItemID     string
	Stage           domain.ValidationStage
	Passed          bool
	RejectionReason string
}

// PriceFilter rejects items with a missing or sub-floor price.
// Deterministic, no external dependency.
func PriceFilter(items []Item, minPrice float64) []StageVerdict {
	out := make([]StageVerdict, 0, len(items))
	for _, it := range items {
		if it.Price == nil {
			out = append(out, StageVerdict{AvitoItemID: it.AvitoItemID, Stage: domain.StagePriceFilter, Passed: false, RejectionReason: "missing price"})
			continue
		}
		if *it.Price < minPrice {
			out = append(out, StageVerdict{AvitoItemID: it.AvitoItemID, Stage: domain.StagePriceFilter, Passed: false, RejectionReason: "price below floor"})
			continue
		}
		out = append(out, StageVerdict{AvitoItemID: it.AvitoItemID, Stage: domain.StagePriceFilter, Passed: true})
	}
	return out
}
