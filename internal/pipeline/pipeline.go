// Package pipeline превращает сырые фиксы геолокации в обогащенные точки:
// оценка качества, детекция выбросов, фильтрация высоты, устойчивая скорость,
// метка активности, уверенность и рекомендация keep/review.
//
// Конвейер синхронный и однопоточный: фиксы обрабатываются по одному до
// завершения. Все изменяемое состояние принадлежит экземпляру Pipeline
// активной сессии записи; независимые сессии не разделяют состояния.
package pipeline

import (
	"fmt"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/internal/quality"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// Pipeline конвейер обработки фиксов одной сессии записи
type Pipeline struct {
	cfg        config.PipelineConfig
	logger     *utils.Logger
	scorer     *quality.Scorer
	spikes     *SpikeDetector
	altitude   *AltitudeFilter
	speed      *SpeedEstimator
	activity   *ActivityClassifier
	confidence *ConfidenceAggregator
}

// NewPipeline создает новый конвейер
func NewPipeline(cfg config.PipelineConfig, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		scorer:     quality.NewScorer(cfg),
		spikes:     NewSpikeDetector(cfg),
		altitude:   NewAltitudeFilter(cfg),
		speed:      NewSpeedEstimator(cfg),
		activity:   NewActivityClassifier(cfg),
		confidence: NewConfidenceAggregator(cfg),
	}
}

// ResetSession очищает все состояние конвейера. Вызывается в начале каждой
// новой записи.
func (p *Pipeline) ResetSession() {
	p.spikes.Reset()
	p.altitude.Reset()
	p.speed.Reset()
	p.activity.Reset()
}

// Process обрабатывает один фикс и возвращает обогащенную точку.
// Ошибка возможна только для фикса с некорректными входными данными; любой
// валидный фикс дает полный результат, деградация выражается флагами и
// снижением уверенности.
func (p *Pipeline) Process(fix *models.RawFix) (*models.EnrichedPoint, error) {
	if fix == nil {
		return nil, fmt.Errorf("fix cannot be nil")
	}
	if err := fix.Validate(); err != nil {
		metrics.FixesRejected.Inc()
		return nil, fmt.Errorf("invalid fix: %w", err)
	}

	assessment := p.scorer.Assess(fix)
	assessment.AddFlags(p.spikes.Detect(fix)...)

	filteredAltitude := p.altitude.Filter(fix.Altitude, fix.Timestamp)
	speedKmh := p.speed.Estimate(fix)
	label := p.activity.Classify(speedKmh)
	confidence, action := p.confidence.Aggregate(&assessment)

	point := &models.EnrichedPoint{
		Raw:     *fix,
		Quality: assessment,
		Filtered: models.FilteredView{
			Position:       fix.Position,
			Altitude:       filteredAltitude,
			SpeedKmh:       speedKmh,
			Activity:       label,
			IsQualityPoint: p.confidence.IsQualityPoint(confidence),
		},
		Confidence: confidence,
		Action:     action,
		CapturedAt: fix.Time(),
	}

	metrics.FixesProcessed.Inc()
	metrics.QualityScore.Observe(float64(assessment.Score))
	if action == models.ActionReview {
		metrics.FixesForReview.Inc()
	}

	p.logger.WithFields(map[string]interface{}{
		"score":      assessment.Score,
		"flags":      assessment.Flags,
		"speed_kmh":  speedKmh,
		"activity":   label,
		"confidence": confidence,
		"action":     action,
	}).Debug("Fix processed")

	return point, nil
}

// Config возвращает конфигурацию конвейера
func (p *Pipeline) Config() config.PipelineConfig {
	return p.cfg
}
