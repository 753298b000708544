package pipeline

import (
	"math"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

// prevFixRef снимок предыдущего фикса для дистанционной скорости.
// Хранится по значению, не ссылкой в трек.
type prevFixRef struct {
	position    models.GeoPoint
	timestampMs int64
}

// SpeedEstimator строит устойчивую оценку скорости: дистанционная скорость
// предпочитается сообщенной устройством, результат ограничивается по точности,
// усредняется по скользящему окну и ограничивается по скорости изменения.
// Одиночный сбой GPS не должен давать видимый скачок скорости на треке.
type SpeedEstimator struct {
	cfg          config.PipelineConfig
	prev         *prevFixRef
	window       []float64
	lastSmoothed float64
}

// NewSpeedEstimator создает новый оценщик скорости
func NewSpeedEstimator(cfg config.PipelineConfig) *SpeedEstimator {
	return &SpeedEstimator{
		cfg:    cfg,
		window: make([]float64, 0, cfg.SpeedWindowSize),
	}
}

// Reset сбрасывает состояние оценщика
func (e *SpeedEstimator) Reset() {
	e.prev = nil
	e.window = e.window[:0]
	e.lastSmoothed = 0
}

// Estimate возвращает сглаженную скорость в км/ч для фикса
func (e *SpeedEstimator) Estimate(fix *models.RawFix) float64 {
	vGps := fix.SpeedKmh()

	// Дистанционная скорость относительно предыдущего фикса,
	// только при разумном интервале
	vDist := -1.0
	if e.prev != nil {
		elapsedSec := float64(fix.Timestamp-e.prev.timestampMs) / 1000
		if elapsedSec > 0 && elapsedSec < e.cfg.SpeedMaxGapSec {
			distanceKm := e.prev.position.DistanceTo(fix.Position) / 1000
			vDist = distanceKm / (elapsedSec / 3600)
		}
	}

	v := vGps
	if vDist >= 0 {
		v = vDist
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}

	// Фиксам с плохой точностью нельзя доверять реальную скорость движения
	if fix.AccuracyM > e.cfg.AccuracyTrustM && v > e.cfg.SpeedFloorKmh {
		v = e.cfg.SpeedFloorKmh
	}

	// Жесткий потолок против артефактов GPS скорости
	if v > e.cfg.SpeedHardCapKmh {
		v = e.cfg.SpeedHardCapKmh
	}

	// Скользящее окно
	e.window = append(e.window, v)
	if len(e.window) > e.cfg.SpeedWindowSize {
		e.window = e.window[1:]
	}
	avg := 0.0
	for _, s := range e.window {
		avg += s
	}
	avg /= float64(len(e.window))

	// Ограничитель скорости изменения
	if avg > e.lastSmoothed+e.cfg.SpeedMaxStepKmh {
		avg = e.lastSmoothed + e.cfg.SpeedMaxStepKmh
	} else if avg < e.lastSmoothed-e.cfg.SpeedMaxStepKmh {
		avg = e.lastSmoothed - e.cfg.SpeedMaxStepKmh
	}

	e.lastSmoothed = avg
	e.prev = &prevFixRef{position: fix.Position, timestampMs: fix.Timestamp}

	return avg
}
