package service

import (
	"context"
	"sync"
	"time"

	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/internal/repository"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// BatchWriter асинхронный батчевый writer обогащенных точек в историческое
// хранилище. Прием точки не блокируется: при заполненной очереди точка
// отбрасывается, обработка фиксов от этого не страдает.
type BatchWriter struct {
	history repository.HistoryRepository
	logger  *utils.Logger
	config  *BatchConfig

	pointChan chan queuedPoint
	buffer    map[string][]*models.EnrichedPoint

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type queuedPoint struct {
	trackID string
	point   *models.EnrichedPoint
}

// BatchConfig конфигурация батчера
type BatchConfig struct {
	BatchSize     int           `json:"batch_size"`
	FlushInterval time.Duration `json:"flush_interval"`
	ChannelBuffer int           `json:"channel_buffer"`
}

// DefaultBatchConfig возвращает конфигурацию по умолчанию
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:     200,
		FlushInterval: 5 * time.Second,
		ChannelBuffer: 4096,
	}
}

// NewBatchWriter создает новый BatchWriter и запускает его worker
func NewBatchWriter(history repository.HistoryRepository, logger *utils.Logger, config *BatchConfig) *BatchWriter {
	if config == nil {
		config = DefaultBatchConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	bw := &BatchWriter{
		history:   history,
		logger:    logger,
		config:    config,
		pointChan: make(chan queuedPoint, config.ChannelBuffer),
		buffer:    make(map[string][]*models.EnrichedPoint),
		ctx:       ctx,
		cancel:    cancel,
	}

	bw.wg.Add(1)
	go bw.run()

	return bw
}

// Enqueue ставит точку в очередь записи. Никогда не блокируется.
func (bw *BatchWriter) Enqueue(trackID string, point *models.EnrichedPoint) {
	select {
	case bw.pointChan <- queuedPoint{trackID: trackID, point: point}:
	default:
		bw.logger.WithField("track_id", trackID).Warn("Batch writer queue full, dropping point")
	}
}

// Stop останавливает writer, дописывая накопленные точки
func (bw *BatchWriter) Stop() {
	bw.cancel()
	bw.wg.Wait()
}

// run основной цикл: накапливает точки и сбрасывает их по размеру батча или
// интервалу
func (bw *BatchWriter) run() {
	defer bw.wg.Done()

	ticker := time.NewTicker(bw.config.FlushInterval)
	defer ticker.Stop()

	buffered := 0
	for {
		select {
		case qp := <-bw.pointChan:
			bw.buffer[qp.trackID] = append(bw.buffer[qp.trackID], qp.point)
			buffered++
			if buffered >= bw.config.BatchSize {
				bw.flush()
				buffered = 0
			}

		case <-ticker.C:
			bw.flush()
			buffered = 0

		case <-bw.ctx.Done():
			bw.drain()
			bw.flush()
			return
		}
	}
}

// drain забирает из канала все, что успело попасть до остановки
func (bw *BatchWriter) drain() {
	for {
		select {
		case qp := <-bw.pointChan:
			bw.buffer[qp.trackID] = append(bw.buffer[qp.trackID], qp.point)
		default:
			return
		}
	}
}

// flush записывает накопленные точки по трекам
func (bw *BatchWriter) flush() {
	for trackID, points := range bw.buffer {
		if len(points) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := bw.history.SavePointsBatch(ctx, trackID, points)
		cancel()

		if err != nil {
			bw.logger.WithFields(map[string]interface{}{
				"track_id": trackID,
				"count":    len(points),
				"error":    err,
			}).Error("Failed to flush point batch")
			// Точки не возвращаются в очередь: история вторична,
			// горячее хранилище уже содержит трек
		}

		delete(bw.buffer, trackID)
	}
}
