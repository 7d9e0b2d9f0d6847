package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func reviews(n int) *int { return &n }

func TestMechanical_RequireArticulumInText(t *testing.T) {
	items := []Item{
		{AvitoItemID: "a1", Title: "OEM part 12345", Snippet: "fits many models"},
		{AvitoItemID: "a2", Title: "unrelated listing", Snippet: "no match here"},
	}
	cfg := MechanicalConfig{RequireArticulumInText: true}

	got := Mechanical("12345", items, cfg)
	assert.True(t, got[0].Passed)
	assert.False(t, got[1].Passed)
	assert.Equal(t, "articulum not present in title or snippet", got[1].RejectionReason)
}

func TestMechanical_RequireArticulumInText_FoldsHomoglyphs(t *testing.T) {
	// Cyrillic "е" and "а" visually match Latin "e"/"a".
	items := []Item{{AvitoItemID: "a1", Title: "tеst-12345-pаrt", Snippet: ""}}
	cfg := MechanicalConfig{RequireArticulumInText: true}

	got := Mechanical("12345", items, cfg)
	assert.True(t, got[0].Passed)
}

func TestMechanical_StopWords(t *testing.T) {
	items := []Item{{AvitoItemID: "a1", Title: "part for parts only, not working", Snippet: ""}}
	cfg := MechanicalConfig{StopWords: []string{"not working"}}

	got := Mechanical("12345", items, cfg)
	assert.False(t, got[0].Passed)
	assert.Contains(t, got[0].RejectionReason, "not working")
}

func TestMechanical_MinSellerReviews(t *testing.T) {
	items := []Item{
		{AvitoItemID: "a1", SellerReviews: reviews(2)},
		{AvitoItemID: "a2", SellerReviews: nil},
		{AvitoItemID: "a3", SellerReviews: reviews(10)},
	}
	cfg := MechanicalConfig{MinSellerReviews: 5}

	got := Mechanical("x", items, cfg)
	assert.False(t, got[0].Passed)
	assert.False(t, got[1].Passed)
	assert.True(t, got[2].Passed)
}

func TestMechanical_IQRCheck_RejectsOutliers(t *testing.T) {
	items := []Item{
		{AvitoItemID: "a1", Price: price(100)},
		{AvitoItemID: "a2", Price: price(105)},
		{AvitoItemID: "a3", Price: price(110)},
		{AvitoItemID: "a4", Price: price(115)},
		{AvitoItemID: "a5", Price: price(120)},
		{AvitoItemID: "a6", Price: price(5000)},
	}
	cfg := MechanicalConfig{EnableIQRCheck: true}

	got := Mechanical("x", items, cfg)
	assert.True(t, got[0].Passed)
	assert.False(t, got[5].Passed)
}

func TestMechanical_IQRCheck_SkippedWithFewerThanFourPrices(t *testing.T) {
	items := []Item{
		{AvitoItemID: "a1", Price: price(10)},
		{AvitoItemID: "a2", Price: price(20000)},
	}
	cfg := MechanicalConfig{EnableIQRCheck: true}

	got := Mechanical("x", items, cfg)
	assert.True(t, got[0].Passed)
	assert.True(t, got[1].Passed)
}
