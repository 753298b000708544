// Package quality оценивает качество одиночного фикса: балл 0-100 и
// диагностические флаги по точности, скорости и правдоподобию высоты.
package quality

import (
	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

// Штрафы за нарушения. Балльная система детерминирована и не зависит от
// порядка применения; выгрузки сверяются с этими значениями.
const (
	penaltyPoorAccuracy        = 40
	penaltyMediumAccuracy      = 20
	penaltyFairAccuracy        = 10
	penaltyImplausibleSpeed    = 30
	penaltyHighSpeed           = 15
	penaltyImplausibleAltitude = 25
	penaltyExtremeAltitude     = 10
)

// Scorer вычисляет оценку качества фикса. Не имеет состояния.
type Scorer struct {
	cfg config.PipelineConfig
}

// NewScorer создает новый Scorer
func NewScorer(cfg config.PipelineConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Assess оценивает фикс. Внутри каждой группы (точность, скорость, высота)
// срабатывает не более одного яруса штрафа; группы независимы.
func (s *Scorer) Assess(fix *models.RawFix) models.QualityAssessment {
	assessment := models.QualityAssessment{Score: 100}

	// Точность
	switch {
	case fix.AccuracyM > s.cfg.AccuracyPoorM:
		assessment.Score -= penaltyPoorAccuracy
		assessment.AddFlags(models.FlagPoorAccuracy)
	case fix.AccuracyM > s.cfg.AccuracyMediumM:
		assessment.Score -= penaltyMediumAccuracy
		assessment.AddFlags(models.FlagMediumAccuracy)
	case fix.AccuracyM > s.cfg.AccuracyFairM:
		assessment.Score -= penaltyFairAccuracy
	}

	// Сообщенная скорость
	speedKmh := fix.SpeedKmh()
	switch {
	case speedKmh > s.cfg.SpeedImplausibleKmh:
		assessment.Score -= penaltyImplausibleSpeed
		assessment.AddFlags(models.FlagImplausibleSpeed)
	case speedKmh > s.cfg.SpeedHighKmh:
		assessment.Score -= penaltyHighSpeed
		assessment.AddFlags(models.FlagHighSpeed)
	}

	// Высота (если присутствует)
	if fix.Altitude != nil {
		alt := *fix.Altitude
		switch {
		case alt < s.cfg.AltitudeMinM || alt > s.cfg.AltitudeMaxM:
			assessment.Score -= penaltyImplausibleAltitude
			assessment.AddFlags(models.FlagImplausibleAltitude)
		case alt < s.cfg.AltitudeExtremeMinM || alt > s.cfg.AltitudeExtremeMaxM:
			assessment.Score -= penaltyExtremeAltitude
			assessment.AddFlags(models.FlagExtremeAltitude)
		}
	}

	if assessment.Score < 0 {
		assessment.Score = 0
	}

	return assessment
}
