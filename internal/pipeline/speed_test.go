package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

func createSpeedFix(lat float64, tsMs int64, accuracy float64, speedMs *float64) *models.RawFix {
	return &models.RawFix{
		Position:  models.GeoPoint{Latitude: lat, Longitude: 8.0},
		AccuracyM: accuracy,
		SpeedMs:   speedMs,
		Timestamp: tsMs,
	}
}

func TestSpeedEstimator_FirstSampleRateLimited(t *testing.T) {
	estimator := NewSpeedEstimator(config.DefaultPipelineConfig())

	// Сглаженное значение стартует с 0, первый отсчет ограничен шагом 5 км/ч
	got := estimator.Estimate(createSpeedFix(46.0, 1000, 10, models.Float64Ptr(10))) // 36 км/ч
	assert.Equal(t, 5.0, got)
}

func TestSpeedEstimator_RampsToConstantSpeed(t *testing.T) {
	estimator := NewSpeedEstimator(config.DefaultPipelineConfig())

	// Движение 10 м/с (36 км/ч), фиксы раз в секунду
	lat := 46.0
	ts := int64(1000)
	prev := 0.0
	var got float64
	for i := 0; i < 12; i++ {
		got = estimator.Estimate(createSpeedFix(lat, ts, 10, nil))
		assert.LessOrEqual(t, got-prev, 5.0+1e-9,
			"smoothed speed must not jump more than the rate limit")
		prev = got
		lat += 10 * degLatPerMeter
		ts += 1000
	}

	// К 12-му отсчету оценка выходит на реальную скорость
	assert.InDelta(t, 36.0, got, 1.0)
}

func TestSpeedEstimator_DistanceSpeedPreferredOverReported(t *testing.T) {
	estimator := NewSpeedEstimator(config.DefaultPipelineConfig())

	// Устройство сообщает 30 м/с (108 км/ч), но позиция не меняется:
	// дистанционная скорость 0 побеждает сообщенную
	ts := int64(1000)
	var got float64
	for i := 0; i < 12; i++ {
		got = estimator.Estimate(createSpeedFix(46.0, ts, 10, models.Float64Ptr(30)))
		ts += 1000
	}
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestSpeedEstimator_PoorAccuracyCapped(t *testing.T) {
	estimator := NewSpeedEstimator(config.DefaultPipelineConfig())

	// Точность 50 м хуже порога доверия: скорость ограничивается 4 км/ч
	got := estimator.Estimate(createSpeedFix(46.0, 1000, 50, models.Float64Ptr(20)))
	assert.Equal(t, 4.0, got)
}

func TestSpeedEstimator_HardCap(t *testing.T) {
	estimator := NewSpeedEstimator(config.DefaultPipelineConfig())

	// Артефакт GPS: 720 км/ч. Оценка растет шагами и упирается в потолок 120
	ts := int64(1000)
	var got float64
	for i := 0; i < 30; i++ {
		got = estimator.Estimate(createSpeedFix(46.0+float64(i)*200*degLatPerMeter, ts, 10, nil))
		assert.LessOrEqual(t, got, 120.0)
		ts += 1000
	}
	assert.Equal(t, 120.0, got)
}

func TestSpeedEstimator_StaleGapIgnoresDistance(t *testing.T) {
	estimator := NewSpeedEstimator(config.DefaultPipelineConfig())

	estimator.Estimate(createSpeedFix(46.0, 1000, 10, nil))

	// 2 км за 2 минуты: интервал больше допустимого, дистанционная скорость
	// не вычисляется, сообщенной скорости нет - отсчет равен 0
	got := estimator.Estimate(createSpeedFix(46.0+2000*degLatPerMeter, 121000, 10, nil))
	assert.InDelta(t, 0.0, got, 1e-9)
}

func TestSpeedEstimator_SingleOutlierSmoothedAway(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	estimator := NewSpeedEstimator(cfg)

	// Стабильная ходьба ~5 км/ч
	lat := 46.0
	ts := int64(1000)
	for i := 0; i < 10; i++ {
		estimator.Estimate(createSpeedFix(lat, ts, 10, nil))
		lat += 1.4 * degLatPerMeter // ~5 км/ч
		ts += 1000
	}

	// Одиночный сбой: скачок на 100 м. Ограничитель не дает скорости
	// вырасти больше чем на шаг
	before := estimator.lastSmoothed
	got := estimator.Estimate(createSpeedFix(lat+100*degLatPerMeter, ts, 10, nil))
	assert.LessOrEqual(t, got, before+cfg.SpeedMaxStepKmh+1e-9)
}

func TestSpeedEstimator_WindowStaysBounded(t *testing.T) {
	cfg := config.DefaultPipelineConfig()
	estimator := NewSpeedEstimator(cfg)

	lat := 46.0
	for i := 0; i < 40; i++ {
		ts := int64(1000 + i*1000)
		lat += 10 * degLatPerMeter
		estimator.Estimate(createSpeedFix(lat, ts, 10, nil))
		assert.LessOrEqual(t, len(estimator.window), cfg.SpeedWindowSize)
	}
	assert.Len(t, estimator.window, cfg.SpeedWindowSize)
}

func TestSpeedEstimator_Reset(t *testing.T) {
	estimator := NewSpeedEstimator(config.DefaultPipelineConfig())

	estimator.Estimate(createSpeedFix(46.0, 1000, 10, models.Float64Ptr(10)))
	estimator.Reset()

	assert.Nil(t, estimator.prev)
	assert.Empty(t, estimator.window)
	assert.Equal(t, 0.0, estimator.lastSmoothed)
}
