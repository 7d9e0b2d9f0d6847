package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avitoscout/orchestrator/internal/domain"
)

func price(v float64) *float64 { return &v }

func TestPriceFilter(t *testing.T) {
	tests := []struct {
		name        string
		items       []Item
		minPrice    float64
		wantPassed  []bool
		wantReasons []string
	}{
		{
			name:        "missing price fails",
			items:       []Item{{AvitoItemID: "a1", Price: nil}},
			minPrice:    100,
			wantPassed:  []bool{false},
			wantReasons: []string{"missing price"},
		},
		{
			name:        "below floor fails",
			items:       []Item{{AvitoItemID: "a2", Price: price(50)}},
			minPrice:    100,
			wantPassed:  []bool{false},
			wantReasons: []string{"price below floor"},
		},
		{
			name:        "at or above floor passes",
			items:       []Item{{AvitoItemID: "a3", Price: price(100)}},
			minPrice:    100,
			wantPassed:  []bool{true},
			wantReasons: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriceFilter(tt.items, tt.minPrice)
			for i, verdict := range got {
				assert.Equal(t, domain.StagePriceFilter, verdict.Stage)
				assert.Equal(t, tt.wantPassed[i], verdict.Passed)
				assert.Equal(t, tt.wantReasons[i], verdict.RejectionReason)
			}
		})
	}
}
