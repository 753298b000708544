package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

func newTestPipeline() *Pipeline {
	return NewPipeline(config.DefaultPipelineConfig(), utils.NewLogger("error", "text"))
}

func TestPipeline_CleanFix(t *testing.T) {
	p := newTestPipeline()

	fix := &models.RawFix{
		Position:  models.GeoPoint{Latitude: 46.0, Longitude: 8.0},
		AccuracyM: 10,
		Altitude:  models.Float64Ptr(200),
		Timestamp: 1700000000000,
	}

	point, err := p.Process(fix)
	require.NoError(t, err)
	require.NotNil(t, point)

	assert.Equal(t, 100, point.Quality.Score)
	assert.Empty(t, point.Quality.Flags)
	assert.Equal(t, 1.0, point.Confidence)
	assert.Equal(t, models.ActionKeep, point.Action)
	assert.True(t, point.Filtered.IsQualityPoint)
	assert.Equal(t, models.ActivityStationary, point.Filtered.Activity)
	require.NotNil(t, point.Filtered.Altitude)
	assert.Equal(t, 200.0, *point.Filtered.Altitude)

	// Сырой фикс сохраняется без изменений
	assert.Equal(t, *fix, point.Raw)
}

func TestPipeline_RejectsInvalidFix(t *testing.T) {
	p := newTestPipeline()

	_, err := p.Process(nil)
	assert.Error(t, err)

	_, err = p.Process(&models.RawFix{
		Position:  models.GeoPoint{Latitude: 95.0, Longitude: 8.0},
		AccuracyM: 10,
		Timestamp: 1700000000000,
	})
	assert.Error(t, err)
}

func TestPipeline_SpikeLowersConfidence(t *testing.T) {
	p := newTestPipeline()

	base := int64(1700000000000)
	_, err := p.Process(&models.RawFix{
		Position:  models.GeoPoint{Latitude: 46.0, Longitude: 8.0},
		AccuracyM: 10,
		Timestamp: base,
	})
	require.NoError(t, err)

	// 100 м за секунду: позиционный выброс режет уверенность множителем 0.3
	point, err := p.Process(&models.RawFix{
		Position:  models.GeoPoint{Latitude: 46.0 + 100*degLatPerMeter, Longitude: 8.0},
		AccuracyM: 10,
		Timestamp: base + 1000,
	})
	require.NoError(t, err)

	assert.True(t, point.Quality.HasFlag(models.FlagPositionSpike))
	assert.InDelta(t, 0.3, point.Confidence, 1e-9)
	assert.Equal(t, models.ActionReview, point.Action)
	assert.False(t, point.Filtered.IsQualityPoint)
}

func TestPipeline_AltitudeHeldOnSpike(t *testing.T) {
	p := newTestPipeline()

	base := int64(1700000000000)
	_, err := p.Process(&models.RawFix{
		Position:  models.GeoPoint{Latitude: 46.0, Longitude: 8.0},
		AccuracyM: 10,
		Altitude:  models.Float64Ptr(200),
		Timestamp: base,
	})
	require.NoError(t, err)

	point, err := p.Process(&models.RawFix{
		Position:  models.GeoPoint{Latitude: 46.0, Longitude: 8.0},
		AccuracyM: 10,
		Altitude:  models.Float64Ptr(300),
		Timestamp: base + 1000,
	})
	require.NoError(t, err)

	// Сырая высота сохранена, отфильтрованная удержана
	require.NotNil(t, point.Raw.Altitude)
	assert.Equal(t, 300.0, *point.Raw.Altitude)
	require.NotNil(t, point.Filtered.Altitude)
	assert.Equal(t, 200.0, *point.Filtered.Altitude)
}

func TestPipeline_ResetSessionRestoresInitialState(t *testing.T) {
	p := newTestPipeline()

	fix := &models.RawFix{
		Position:  models.GeoPoint{Latitude: 46.0, Longitude: 8.0},
		AccuracyM: 10,
		Altitude:  models.Float64Ptr(200),
		SpeedMs:   models.Float64Ptr(4),
		Timestamp: 1700000000000,
	}

	first, err := p.Process(fix)
	require.NoError(t, err)

	// Разогреваем состояние и сбрасываем
	for i := 1; i < 10; i++ {
		_, err := p.Process(&models.RawFix{
			Position:  models.GeoPoint{Latitude: 46.0 + float64(i)*10*degLatPerMeter, Longitude: 8.0},
			AccuracyM: 10,
			Altitude:  models.Float64Ptr(200 + float64(i)),
			Timestamp: 1700000000000 + int64(i)*1000,
		})
		require.NoError(t, err)
	}
	p.ResetSession()

	again, err := p.Process(fix)
	require.NoError(t, err)
	assert.Equal(t, first, again, "identical fix after reset must produce identical point")
}
