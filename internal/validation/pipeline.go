package validation

import "github.com/avitoscout/orchestrator/internal/domain"

// PipelineConfig holds the feature flags controlling which validation
// stages run and with what thresholds.
type PipelineConfig struct {
	EnablePriceValidation bool
	MinPrice              float64
	EnableMechanical      bool
	Mechanical            MechanicalConfig
	EnableAI              bool
}

// EnabledStages lists, in evaluation order, the stages this config turns
// on — used both to run the pipeline and to decide "passed every enabled
// stage".
func (c PipelineConfig) EnabledStages() []domain.ValidationStage {
	var stages []domain.ValidationStage
	if c.EnablePriceValidation {
		stages = append(stages, domain.StagePriceFilter)
	}
	if c.EnableMechanical {
		stages = append(stages, domain.StageMechanical)
	}
	if c.EnableAI {
		stages = append(stages, domain.StageAI)
	}
	return stages
}

// RunDeterministicStages runs price_filter and mechanical (whichever are
// enabled) over every item and returns the flat list of verdicts to
// persist. The AI stage is run separately by the caller since it is a
// single articulum-scope call, not a pure per-item function, and can fail.
func RunDeterministicStages(articulum string, items []Item, cfg PipelineConfig) []StageVerdict {
	var verdicts []StageVerdict
	if cfg.EnablePriceValidation {
		verdicts = append(verdicts, PriceFilter(items, cfg.MinPrice)...)
	}
	if cfg.EnableMechanical {
		verdicts = append(verdicts, Mechanical(articulum, items, cfg.Mechanical)...)
	}
	return verdicts
}
