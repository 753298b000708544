package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.Server.Address)
	assert.Equal(t, "redis://localhost:6379", cfg.Redis.URL)
	assert.Equal(t, "trk/+/fix", cfg.MQTT.TopicPrefix)
	assert.Empty(t, cfg.MySQL.DSN)
	assert.True(t, cfg.Monitoring.MetricsEnabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9999")
	t.Setenv("PIPELINE_MIN_MOVEMENT_M", "12.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 12.5, cfg.Pipeline.MinMovementM)
}

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	// Пороги оценки качества
	assert.Equal(t, 100.0, cfg.AccuracyPoorM)
	assert.Equal(t, 50.0, cfg.AccuracyMediumM)
	assert.Equal(t, 20.0, cfg.AccuracyFairM)
	assert.Equal(t, 200.0, cfg.SpeedImplausibleKmh)
	assert.Equal(t, 100.0, cfg.SpeedHighKmh)
	assert.Equal(t, -500.0, cfg.AltitudeMinM)
	assert.Equal(t, 10000.0, cfg.AltitudeMaxM)
	assert.Equal(t, -100.0, cfg.AltitudeExtremeMinM)
	assert.Equal(t, 5000.0, cfg.AltitudeExtremeMaxM)

	// Пороги детектора выбросов
	assert.Equal(t, 30.0, cfg.LargeTimeGapSec)
	assert.Equal(t, 50.0, cfg.PositionSpikeMs)
	assert.Equal(t, 30.0, cfg.HighSpeedJumpMs)
	assert.Equal(t, 10.0, cfg.VerticalSpikeMs)
	assert.Equal(t, 5.0, cfg.VerticalRapidMs)

	// Оценка скорости
	assert.Equal(t, 40.0, cfg.AccuracyTrustM)
	assert.Equal(t, 4.0, cfg.SpeedFloorKmh)
	assert.Equal(t, 120.0, cfg.SpeedHardCapKmh)
	assert.Equal(t, 5, cfg.SpeedWindowSize)
	assert.Equal(t, 5.0, cfg.SpeedMaxStepKmh)
	assert.Equal(t, 60.0, cfg.SpeedMaxGapSec)

	// Классификация активности
	assert.Equal(t, 0.5, cfg.StationaryMaxKmh)
	assert.Equal(t, 7.0, cfg.WalkingMaxKmh)
	assert.Equal(t, 20.0, cfg.StreakSpeedKmh)
	assert.Equal(t, 45.0, cfg.DrivingMinKmh)
	assert.Equal(t, 10, cfg.StreakRequired)
	assert.Equal(t, 7, cfg.LabelWindowSize)

	// Уверенность
	assert.Equal(t, 0.7, cfg.ConfidenceKeep)
	assert.Equal(t, 0.5, cfg.ConfidenceQuality)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Address: ":8090"},
			Redis:    RedisConfig{URL: "redis://localhost:6379"},
			MQTT:     MQTTConfig{URL: "tcp://localhost:1883"},
			Pipeline: DefaultPipelineConfig(),
			Anomaly:  DefaultAnomalyConfig(),
		}
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Server.Address = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Redis.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.MQTT.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Pipeline.SpeedWindowSize = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.Anomaly.MaxSamplesPerTrack = 0
	assert.Error(t, cfg.Validate())
}
