package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

// Градус широты примерно 111,195 м при среднем радиусе Земли
const degLatPerMeter = 1.0 / 111195.0

func createFix(lat, lon float64, tsMs int64, altitude *float64) *models.RawFix {
	return &models.RawFix{
		Position:  models.GeoPoint{Latitude: lat, Longitude: lon},
		AccuracyM: 10,
		Altitude:  altitude,
		Timestamp: tsMs,
	}
}

func TestSpikeDetector_FirstFixEmitsNothing(t *testing.T) {
	detector := NewSpikeDetector(config.DefaultPipelineConfig())

	flags := detector.Detect(createFix(46.0, 8.0, 1000, nil))
	assert.Empty(t, flags)
}

func TestSpikeDetector_PositionSpike(t *testing.T) {
	detector := NewSpikeDetector(config.DefaultPipelineConfig())

	detector.Detect(createFix(46.0, 8.0, 1000, nil))

	// 100 м за 1 секунду - 100 м/с
	flags := detector.Detect(createFix(46.0+100*degLatPerMeter, 8.0, 2000, nil))
	assert.Contains(t, flags, models.FlagPositionSpike)
	assert.NotContains(t, flags, models.FlagHighSpeedJump)
}

func TestSpikeDetector_HighSpeedJump(t *testing.T) {
	detector := NewSpikeDetector(config.DefaultPipelineConfig())

	detector.Detect(createFix(46.0, 8.0, 1000, nil))

	// 40 м за 1 секунду - между порогами 30 и 50 м/с
	flags := detector.Detect(createFix(46.0+40*degLatPerMeter, 8.0, 2000, nil))
	assert.Contains(t, flags, models.FlagHighSpeedJump)
	assert.NotContains(t, flags, models.FlagPositionSpike)
}

func TestSpikeDetector_LargeTimeGap(t *testing.T) {
	detector := NewSpikeDetector(config.DefaultPipelineConfig())

	detector.Detect(createFix(46.0, 8.0, 1000, nil))

	flags := detector.Detect(createFix(46.0, 8.0, 1000+31*1000, nil))
	assert.Equal(t, []models.Flag{models.FlagLargeTimeGap}, flags)
}

func TestSpikeDetector_VerticalSpikes(t *testing.T) {
	cfg := config.DefaultPipelineConfig()

	t.Run("AltitudeSpike", func(t *testing.T) {
		detector := NewSpikeDetector(cfg)
		detector.Detect(createFix(46.0, 8.0, 1000, models.Float64Ptr(100)))

		// 20 м/с вертикальной скорости
		flags := detector.Detect(createFix(46.0, 8.0, 2000, models.Float64Ptr(120)))
		assert.Contains(t, flags, models.FlagAltitudeSpike)
	})

	t.Run("RapidAltitudeChange", func(t *testing.T) {
		detector := NewSpikeDetector(cfg)
		detector.Detect(createFix(46.0, 8.0, 1000, models.Float64Ptr(100)))

		// 7 м/с - между порогами 5 и 10 м/с
		flags := detector.Detect(createFix(46.0, 8.0, 2000, models.Float64Ptr(107)))
		assert.Contains(t, flags, models.FlagRapidAltitudeChange)
		assert.NotContains(t, flags, models.FlagAltitudeSpike)
	})

	t.Run("MissingAltitudeSkipsVerticalCheck", func(t *testing.T) {
		detector := NewSpikeDetector(cfg)
		detector.Detect(createFix(46.0, 8.0, 1000, models.Float64Ptr(100)))

		flags := detector.Detect(createFix(46.0, 8.0, 2000, nil))
		assert.Empty(t, flags)
	})
}

func TestSpikeDetector_NonPositiveDeltaUsesOneSecond(t *testing.T) {
	detector := NewSpikeDetector(config.DefaultPipelineConfig())

	detector.Detect(createFix(46.0, 8.0, 1000, nil))

	// Дубликат таймстампа: 100 м при защитном делителе в 1 секунду
	flags := detector.Detect(createFix(46.0+100*degLatPerMeter, 8.0, 1000, nil))
	assert.Contains(t, flags, models.FlagPositionSpike)
	assert.NotContains(t, flags, models.FlagLargeTimeGap)
}

func TestSpikeDetector_RawHistoryNotFiltered(t *testing.T) {
	detector := NewSpikeDetector(config.DefaultPipelineConfig())

	detector.Detect(createFix(46.0, 8.0, 1000, nil))

	// Выброс запоминается как предыдущий сырой фикс, поэтому возврат назад
	// тоже выглядит как выброс
	flags := detector.Detect(createFix(46.0+100*degLatPerMeter, 8.0, 2000, nil))
	assert.Contains(t, flags, models.FlagPositionSpike)

	flags = detector.Detect(createFix(46.0, 8.0, 3000, nil))
	assert.Contains(t, flags, models.FlagPositionSpike)
}

func TestSpikeDetector_Reset(t *testing.T) {
	detector := NewSpikeDetector(config.DefaultPipelineConfig())

	detector.Detect(createFix(46.0, 8.0, 1000, nil))
	detector.Reset()

	// После сброса первый фикс снова без флагов
	flags := detector.Detect(createFix(46.0+100*degLatPerMeter, 8.0, 2000, nil))
	assert.Empty(t, flags)
}
