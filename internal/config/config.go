package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит конфигурацию приложения
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	MQTT        MQTTConfig
	MySQL       MySQLConfig
	Pipeline    PipelineConfig
	Anomaly     AnomalyConfig
	Monitoring  MonitoringConfig
}

// ServerConfig конфигурация HTTP сервера
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// RedisConfig конфигурация Redis
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MQTTConfig конфигурация MQTT
type MQTTConfig struct {
	URL          string
	ClientID     string
	Username     string
	Password     string
	CleanSession bool
	TopicPrefix  string
}

// MySQLConfig конфигурация MySQL (история треков)
type MySQLConfig struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
}

// PipelineConfig пороги обработки фиксов.
// Значения подобраны эмпирически; это константы конфигурации, а не выводимые величины.
type PipelineConfig struct {
	// Точность
	AccuracyPoorM   float64 // хуже этого - штраф poor_accuracy
	AccuracyMediumM float64 // хуже этого - штраф medium_accuracy
	AccuracyFairM   float64 // хуже этого - малый штраф без флага
	AccuracyTrustM  float64 // хуже этого - скорость ограничивается SpeedFloorKmh

	// Скорость
	SpeedImplausibleKmh float64
	SpeedHighKmh        float64
	SpeedFloorKmh       float64 // потолок скорости при плохой точности
	SpeedHardCapKmh     float64
	SpeedWindowSize     int
	SpeedMaxStepKmh     float64 // ограничитель скорости изменения сглаженного значения
	SpeedMaxGapSec      float64 // максимальный интервал для дистанционной скорости

	// Высота
	AltitudeMinM         float64
	AltitudeMaxM         float64
	AltitudeExtremeMinM  float64
	AltitudeExtremeMaxM  float64
	VerticalSpeedMaxMs   float64 // порог отклонения высотного фильтра
	VerticalSpikeMs      float64 // altitude_spike
	VerticalRapidMs      float64 // rapid_altitude_change
	PositionSpikeMs      float64 // position_spike
	HighSpeedJumpMs      float64 // high_speed_jump
	LargeTimeGapSec      float64 // large_time_gap
	ConfidenceKeep       float64 // порог действия keep
	ConfidenceQuality    float64 // порог is_quality_point

	// Классификатор активности
	StationaryMaxKmh float64
	WalkingMaxKmh    float64
	StreakSpeedKmh   float64
	DrivingMinKmh    float64
	StreakRequired   int
	LabelWindowSize  int

	// Энергосбережение: минимальное перемещение для принятия фикса (0 = выключено)
	MinMovementM float64
}

// AnomalyConfig пороги детектора аномалий
type AnomalyConfig struct {
	SpeedJumpKmh       float64 // скачок сглаженной скорости
	SharpTurnDeg       float64 // резкий поворот
	GapSec             float64 // разрыв GPS
	DeviationNearM     float64 // ближе этого - трек считается совпадающим
	DeviationFarM      float64 // дальше этого от всех треков - отклонение от маршрута
	MinTrackPoints     int     // минимум точек трека для сравнения
	MaxSamplesPerTrack int     // бюджет сэмплов при сравнении с треком
}

// MonitoringConfig конфигурация мониторинга
type MonitoringConfig struct {
	MetricsEnabled bool
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Address:      getEnv("SERVER_ADDRESS", ":8090"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getInt("REDIS_DB", 0),
			PoolSize:     getInt("REDIS_POOL_SIZE", 50),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		MQTT: MQTTConfig{
			URL:          getEnv("MQTT_URL", "tcp://localhost:1883"),
			ClientID:     getEnv("MQTT_CLIENT_ID", "btm-tracker-api"),
			Username:     getEnv("MQTT_USERNAME", ""),
			Password:     getEnv("MQTT_PASSWORD", ""),
			CleanSession: getBool("MQTT_CLEAN_SESSION", false),
			TopicPrefix:  getEnv("MQTT_TOPIC_PREFIX", "trk/+/fix"),
		},
		MySQL: MySQLConfig{
			DSN:          getEnv("MYSQL_DSN", ""),
			MaxIdleConns: getInt("MYSQL_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getInt("MYSQL_MAX_OPEN_CONNS", 50),
		},
		Pipeline:   DefaultPipelineConfig(),
		Anomaly:    DefaultAnomalyConfig(),
		Monitoring: MonitoringConfig{MetricsEnabled: getBool("METRICS_ENABLED", true)},
	}

	cfg.Pipeline.MinMovementM = getFloat("PIPELINE_MIN_MOVEMENT_M", cfg.Pipeline.MinMovementM)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// DefaultPipelineConfig возвращает пороги обработки по умолчанию
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		AccuracyPoorM:   100,
		AccuracyMediumM: 50,
		AccuracyFairM:   20,
		AccuracyTrustM:  40,

		SpeedImplausibleKmh: 200,
		SpeedHighKmh:        100,
		SpeedFloorKmh:       4,
		SpeedHardCapKmh:     120,
		SpeedWindowSize:     5,
		SpeedMaxStepKmh:     5,
		SpeedMaxGapSec:      60,

		AltitudeMinM:        -500,
		AltitudeMaxM:        10000,
		AltitudeExtremeMinM: -100,
		AltitudeExtremeMaxM: 5000,
		VerticalSpeedMaxMs:  5,
		VerticalSpikeMs:     10,
		VerticalRapidMs:     5,
		PositionSpikeMs:     50,
		HighSpeedJumpMs:     30,
		LargeTimeGapSec:     30,
		ConfidenceKeep:      0.7,
		ConfidenceQuality:   0.5,

		StationaryMaxKmh: 0.5,
		WalkingMaxKmh:    7,
		StreakSpeedKmh:   20,
		DrivingMinKmh:    45,
		StreakRequired:   10,
		LabelWindowSize:  7,

		MinMovementM: 0,
	}
}

// DefaultAnomalyConfig возвращает пороги детектора аномалий по умолчанию
func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		SpeedJumpKmh:       20,
		SharpTurnDeg:       90,
		GapSec:             10,
		DeviationNearM:     50,
		DeviationFarM:      150,
		MinTrackPoints:     10,
		MaxSamplesPerTrack: 60,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("SERVER_ADDRESS is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.MQTT.URL == "" {
		return fmt.Errorf("MQTT_URL is required")
	}

	if c.Pipeline.SpeedWindowSize <= 0 {
		return fmt.Errorf("speed window size must be positive")
	}

	if c.Pipeline.LabelWindowSize <= 0 {
		return fmt.Errorf("label window size must be positive")
	}

	if c.Anomaly.MaxSamplesPerTrack <= 0 {
		return fmt.Errorf("anomaly sample budget must be positive")
	}

	return nil
}

// Helper функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LogLevel возвращает уровень логирования
func LogLevel() string {
	return getEnv("LOG_LEVEL", "info")
}

// LogFormat возвращает формат логирования
func LogFormat() string {
	return getEnv("LOG_FORMAT", "json")
}
