package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avitoscout/orchestrator/internal/domain"
)

func TestPipelineConfig_EnabledStages(t *testing.T) {
	cfg := PipelineConfig{EnablePriceValidation: true, EnableMechanical: true, EnableAI: false}
	assert.Equal(t, []domain.ValidationStage{domain.StagePriceFilter, domain.StageMechanical}, cfg.EnabledStages())

	cfg = PipelineConfig{EnableAI: true}
	assert.Equal(t, []domain.ValidationStage{domain.StageAI}, cfg.EnabledStages())

	cfg = PipelineConfig{}
	assert.Empty(t, cfg.EnabledStages())
}

func TestRunDeterministicStages_RunsOnlyEnabledStages(t *testing.T) {
	items := []Item{{AvitoItemID: "a1", Price: price(50), Title: "x", Snippet: "y"}}

	cfg := PipelineConfig{EnablePriceValidation: true, MinPrice: 100}
	verdicts := RunDeterministicStages("x", items, cfg)
	if assert.Len(t, verdicts, 1) {
		assert.Equal(t, domain.StagePriceFilter, verdicts[0].Stage)
		assert.False(t, verdicts[0].Passed)
	}

	cfg = PipelineConfig{EnablePriceValidation: true, MinPrice: 100, EnableMechanical: true}
	verdicts = RunDeterministicStages("x", items, cfg)
	assert.Len(t, verdicts, 2)
}
