package pipeline

import (
	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

// Множители уверенности для наиболее серьезных флагов;
// при нескольких флагах множители перемножаются.
const (
	positionSpikeFactor    = 0.3
	altitudeSpikeFactor    = 0.5
	implausibleSpeedFactor = 0.2
)

// ConfidenceAggregator сводит оценку и флаги в уверенность 0-1 и рекомендацию.
// Не имеет состояния.
type ConfidenceAggregator struct {
	cfg config.PipelineConfig
}

// NewConfidenceAggregator создает новый агрегатор уверенности
func NewConfidenceAggregator(cfg config.PipelineConfig) *ConfidenceAggregator {
	return &ConfidenceAggregator{cfg: cfg}
}

// Aggregate возвращает уверенность [0,1] и рекомендуемое действие
func (a *ConfidenceAggregator) Aggregate(assessment *models.QualityAssessment) (float64, models.Action) {
	confidence := float64(assessment.Score) / 100

	if assessment.HasFlag(models.FlagPositionSpike) {
		confidence *= positionSpikeFactor
	}
	if assessment.HasFlag(models.FlagAltitudeSpike) {
		confidence *= altitudeSpikeFactor
	}
	if assessment.HasFlag(models.FlagImplausibleSpeed) {
		confidence *= implausibleSpeedFactor
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	action := models.ActionReview
	if confidence > a.cfg.ConfidenceKeep {
		action = models.ActionKeep
	}

	return confidence, action
}

// IsQualityPoint проверяет, достаточно ли уверенности для качественной точки
func (a *ConfidenceAggregator) IsQualityPoint(confidence float64) bool {
	return confidence > a.cfg.ConfidenceQuality
}
