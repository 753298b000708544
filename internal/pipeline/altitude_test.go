package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

func TestAltitudeFilter_PassesThroughAbsent(t *testing.T) {
	filter := NewAltitudeFilter(config.DefaultPipelineConfig())

	assert.Nil(t, filter.Filter(nil, 1000))
}

func TestAltitudeFilter_FirstValueAccepted(t *testing.T) {
	filter := NewAltitudeFilter(config.DefaultPipelineConfig())

	got := filter.Filter(models.Float64Ptr(100), 1000)
	require.NotNil(t, got)
	assert.Equal(t, 100.0, *got)
}

func TestAltitudeFilter_HoldsOnSpike(t *testing.T) {
	filter := NewAltitudeFilter(config.DefaultPipelineConfig())

	filter.Filter(models.Float64Ptr(100), 1000)

	// 20 м/с вертикальной скорости - выброс, держим предыдущее значение
	got := filter.Filter(models.Float64Ptr(120), 2000)
	require.NotNil(t, got)
	assert.Equal(t, 100.0, *got)

	// Состояние осталось на 100; 9 м за секунду все еще выброс
	got = filter.Filter(models.Float64Ptr(109), 3000)
	require.NotNil(t, got)
	assert.Equal(t, 100.0, *got)

	// 4 м за секунду от удержанного значения принимается
	got = filter.Filter(models.Float64Ptr(104), 4000)
	require.NotNil(t, got)
	assert.Equal(t, 104.0, *got)
}

func TestAltitudeFilter_AcceptsGradualClimb(t *testing.T) {
	filter := NewAltitudeFilter(config.DefaultPipelineConfig())

	altitude := 100.0
	ts := int64(1000)
	for i := 0; i < 10; i++ {
		got := filter.Filter(models.Float64Ptr(altitude), ts)
		require.NotNil(t, got)
		assert.Equal(t, altitude, *got)
		altitude += 4 // 4 м/с - ниже порога 5 м/с
		ts += 1000
	}
}

func TestAltitudeFilter_NeverBlendsValues(t *testing.T) {
	filter := NewAltitudeFilter(config.DefaultPipelineConfig())

	filter.Filter(models.Float64Ptr(100), 1000)
	got := filter.Filter(models.Float64Ptr(200), 2000)

	// Либо кандидат, либо предыдущее значение, никаких промежуточных
	require.NotNil(t, got)
	assert.Equal(t, 100.0, *got)
}

func TestAltitudeFilter_Reset(t *testing.T) {
	filter := NewAltitudeFilter(config.DefaultPipelineConfig())

	filter.Filter(models.Float64Ptr(100), 1000)
	filter.Reset()

	// После сброса любой кандидат принимается как первый
	got := filter.Filter(models.Float64Ptr(5000), 2000)
	require.NotNil(t, got)
	assert.Equal(t, 5000.0, *got)
}
