package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/avitoscout/orchestrator/internal/domain"
	"github.com/avitoscout/orchestrator/internal/normalization"
)

// MechanicalConfig toggles the four sequential sub-checks. First failure
// wins and becomes the rejection_reason.
type MechanicalConfig struct {
	RequireArticulumInText bool
	StopWords              []string
	MinSellerReviews       int
	EnableIQRCheck         bool
}

// Mechanical runs the sequential sub-checks over every item for one
// articulum.
func Mechanical(articulum string, items []Item, cfg MechanicalConfig) []StageVerdict {
	out := make([]StageVerdict, 0, len(items))
	normalizedArticulum := normalization.FoldHomoglyphs(articulum)
	stopWords := make([]string, len(cfg.StopWords))
	for i, w := range cfg.StopWords {
		stopWords[i] = strings.ToLower(strings.TrimSpace(w))
	}

	var iqrLow, iqrHigh, minAcceptablePrice float64
	iqrApplicable := false
	if cfg.EnableIQRCheck {
		iqrLow, iqrHigh, minAcceptablePrice, iqrApplicable = iqrBounds(items)
	}

	for _, it := range items {
		combinedText := strings.ToLower(it.Title + " " + it.Snippet)

		if cfg.RequireArticulumInText {
			normalizedText := normalization.FoldHomoglyphs(combinedText)
			if !strings.Contains(normalizedText, normalizedArticulum) {
				out = append(out, fail(it.AvitoItemID, "articulum not present in title or snippet"))
				continue
			}
		}

		if sw, found := firstStopWord(combinedText, stopWords); found {
			out = append(out, fail(it.AvitoItemID, fmt.Sprintf("stop-word matched: %s", sw)))
			continue
		}

		if cfg.MinSellerReviews > 0 {
			if it.SellerReviews == nil || *it.SellerReviews < cfg.MinSellerReviews {
				out = append(out, fail(it.AvitoItemID, "insufficient seller reviews"))
				continue
			}
		}

		if cfg.EnableIQRCheck && iqrApplicable && it.Price != nil {
			if *it.Price < iqrLow || *it.Price > iqrHigh {
				out = append(out, fail(it.AvitoItemID, "price outside IQR sane range"))
				continue
			}
			if *it.Price < minAcceptablePrice {
				out = append(out, fail(it.AvitoItemID, "suspiciously low price"))
				continue
			}
		}

		out = append(out, StageVerdict{AvitoItemID: it.AvitoItemID, Stage: domain.StageMechanical, Passed: true})
	}
	return out
}

func fail(id, reason string) StageVerdict {
	return StageVerdict{AvitoItemID: id, Stage: domain.StageMechanical, Passed: false, RejectionReason: reason}
}

func firstStopWord(haystack string, stopWords []string) (string, bool) {
	for _, w := range stopWords {
		if w == "" {
			continue
		}
		if strings.Contains(haystack, w) {
			return w, true
		}
	}
	return "", false
}

// iqrBounds computes [Q1-IQR, Q3+IQR] and 0.5*median_top40 over the
// non-null prices.
func iqrBounds(items []Item) (low, high, minAcceptable float64, ok bool) {
	prices := make([]float64, 0, len(items))
	for _, it := range items {
		if it.Price != nil {
			prices = append(prices, *it.Price)
		}
	}
	if len(prices) < 4 {
		return 0, 0, 0, false
	}
	sort.Float64s(prices)

	q1 := percentile(prices, 0.25)
	q3 := percentile(prices, 0.75)
	iqr := q3 - q1
	low = q1 - iqr
	high = q3 + iqr

	retained := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p >= low && p <= high {
			retained = append(retained, p)
		}
	}
	if len(retained) == 0 {
		return low, high, 0, true
	}

	descending := make([]float64, len(retained))
	copy(descending, retained)
	sort.Sort(sort.Reverse(sort.Float64Slice(descending)))
	topCount := int(math.Floor(2 * float64(len(descending)) / 5))
	if topCount < 1 {
		topCount = 1
	}
	if topCount > len(descending) {
		topCount = len(descending)
	}
	medianTop40 := median(descending[:topCount])
	return low, high, 0.5 * medianTop40, true
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	idx := p * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
