package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/handler"
	"github.com/aragnam/BTMliveTrackerApp/internal/metrics"
	"github.com/aragnam/BTMliveTrackerApp/internal/mqtt"
	"github.com/aragnam/BTMliveTrackerApp/internal/repository"
	"github.com/aragnam/BTMliveTrackerApp/internal/service"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

var (
	// Version будет установлен при сборке через ldflags
	Version = "dev"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализируем логирование
	logger := utils.NewLogger(config.LogLevel(), config.LogFormat())
	logger.WithField("version", Version).Info("Starting BTM Tracker API")
	metrics.SetAppInfo(Version)

	// Создаем контекст приложения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем Redis репозиторий (горячее хранилище)
	redisRepo, err := repository.NewRedisRepository(&cfg.Redis, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize Redis repository")
	}
	defer redisRepo.Close()

	// Проверяем соединение с Redis
	if err := redisRepo.Ping(ctx); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to Redis")
	}
	logger.Info("Connected to Redis")

	// Инициализируем MySQL репозиторий (опционально, история треков)
	var mysqlRepo *repository.MySQLRepository
	var batchWriter *service.BatchWriter
	if cfg.MySQL.DSN != "" {
		mysqlRepo, err = repository.NewMySQLRepository(&cfg.MySQL, logger)
		if err != nil {
			logger.WithField("error", err).Warn("Failed to initialize MySQL repository")
			mysqlRepo = nil
		} else {
			defer mysqlRepo.Close()
			if err := mysqlRepo.Ping(ctx); err != nil {
				logger.WithField("error", err).Warn("Failed to connect to MySQL")
			} else {
				logger.Info("Connected to MySQL")
			}
			batchWriter = service.NewBatchWriter(mysqlRepo, logger, nil)
			defer batchWriter.Stop()
		}
	}

	// WebSocket handler создается до Recorder: он транслирует точки и
	// алерты подписчикам
	wsHandler := handler.NewWebSocketHandler(cfg, logger)

	// Recorder: сессия записи, конвейер обработки, детектор аномалий
	var history repository.HistoryRepository
	if mysqlRepo != nil {
		history = mysqlRepo
	}
	recorder, err := service.NewRecorder(cfg, redisRepo, history, batchWriter, wsHandler, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize recorder")
	}

	// Создаем HTTP сервер
	server := handler.NewServer(cfg, redisRepo, recorder, wsHandler, logger)

	// MQTT канал приема фиксов. Фикс от устройства без активной сессии
	// открывает новую сессию для этого устройства.
	messageHandler := func(msg *mqtt.FixMessage) error {
		if recorder.ActiveTrackID() == "" {
			if _, err := recorder.StartSession(ctx, msg.DeviceID); err != nil {
				return err
			}
		}
		_, _, err := recorder.HandleFix(ctx, msg.Fix)
		return err
	}

	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger, messageHandler)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize MQTT client")
	}
	defer mqttClient.Disconnect()

	if err := mqttClient.Connect(); err != nil {
		logger.WithField("error", err).Fatal("Failed to connect to MQTT broker")
	}
	logger.Info("Connected to MQTT broker")

	// Запускаем HTTP сервер в горутине
	go func() {
		if err := server.Start(); err != nil {
			logger.WithField("error", err).Fatal("Failed to start HTTP server")
		}
	}()

	// Прогреваем горячее хранилище историей (если MySQL доступен)
	if mysqlRepo != nil {
		go func() {
			warmHotStorage(ctx, mysqlRepo, redisRepo, logger)
		}()
	}

	// Ждем сигнала остановки
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("HTTP server shutdown error")
	}

	if recorder.ActiveTrackID() != "" {
		if err := recorder.StopSession(shutdownCtx); err != nil {
			logger.WithField("error", err).Warn("Failed to stop recording session")
		}
	}

	logger.Info("Shutdown complete")
}

// warmHotStorage загружает недавние треки из истории в горячее хранилище,
// чтобы детектор аномалий мог сравнивать новую сессию с прошлыми маршрутами
func warmHotStorage(ctx context.Context, mysqlRepo *repository.MySQLRepository, redisRepo *repository.RedisRepository, logger *utils.Logger) {
	const recentTracksLimit = 20

	start := time.Now()
	tracks, err := mysqlRepo.LoadTracks(ctx, recentTracksLimit)
	if err != nil {
		logger.WithField("error", err).Warn("Failed to load tracks from history")
		return
	}

	loaded := 0
	for _, track := range tracks {
		if err := redisRepo.CreateTrack(ctx, track); err != nil {
			logger.WithFields(map[string]interface{}{
				"track_id": track.ID,
				"error":    err,
			}).Warn("Failed to warm track in hot storage")
			continue
		}
		for _, point := range track.Points {
			if err := redisRepo.AppendPoint(ctx, track.ID, point); err != nil {
				logger.WithFields(map[string]interface{}{
					"track_id": track.ID,
					"error":    err,
				}).Warn("Failed to warm track points in hot storage")
				break
			}
		}
		loaded++
	}

	logger.WithFields(map[string]interface{}{
		"tracks":      loaded,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Hot storage warmed from history")
}
