package pipeline

import (
	"math"

	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

// SpikeDetector сравнивает текущий сырой фикс с предыдущим сырым фиксом и
// флагирует разрывы времени, позиционные и высотные выбросы.
//
// Детектор работает по сырой истории, а не по отфильтрованной: отвергнутый
// выброс не должен маскировать следующий реальный выброс.
type SpikeDetector struct {
	cfg  config.PipelineConfig
	prev *models.RawFix
}

// NewSpikeDetector создает новый детектор выбросов
func NewSpikeDetector(cfg config.PipelineConfig) *SpikeDetector {
	return &SpikeDetector{cfg: cfg}
}

// Reset сбрасывает историю детектора
func (d *SpikeDetector) Reset() {
	d.prev = nil
}

// Detect возвращает флаги для текущего фикса и запоминает его как предыдущий.
// На первом фиксе сессии флаги не выставляются.
func (d *SpikeDetector) Detect(fix *models.RawFix) []models.Flag {
	prev := d.prev
	d.prev = fix

	if prev == nil {
		return nil
	}

	var flags []models.Flag

	timeGapSec := float64(fix.Timestamp-prev.Timestamp) / 1000
	if timeGapSec > d.cfg.LargeTimeGapSec {
		flags = append(flags, models.FlagLargeTimeGap)
	}

	// Защита от нулевых и отрицательных дельт времени при сбоях часов
	effectiveDt := timeGapSec
	if effectiveDt <= 0 {
		effectiveDt = 1
	}

	speedMs := prev.Position.DistanceTo(fix.Position) / effectiveDt
	switch {
	case speedMs > d.cfg.PositionSpikeMs:
		flags = append(flags, models.FlagPositionSpike)
	case speedMs > d.cfg.HighSpeedJumpMs:
		flags = append(flags, models.FlagHighSpeedJump)
	}

	if fix.Altitude != nil && prev.Altitude != nil {
		verticalSpeed := math.Abs(*fix.Altitude-*prev.Altitude) / effectiveDt
		switch {
		case verticalSpeed > d.cfg.VerticalSpikeMs:
			flags = append(flags, models.FlagAltitudeSpike)
		case verticalSpeed > d.cfg.VerticalRapidMs:
			flags = append(flags, models.FlagRapidAltitudeChange)
		}
	}

	return flags
}
