package pipeline

import (
	"github.com/aragnam/BTMliveTrackerApp/internal/config"
	"github.com/aragnam/BTMliveTrackerApp/internal/models"
)

// ActivityClassifier определяет метку активности по сглаженной скорости.
// Двухступенчатая схема: мгновенная классификация с гистерезисом на счетчике
// серии, затем сглаживание голосованием по окну последних меток.
//
// Гистерезис не дает одиночному быстрому отсчету мгновенно переключить метку
// на cycling/driving: требуется устойчивое движение быстрее порога серии.
type ActivityClassifier struct {
	cfg    config.PipelineConfig
	streak int
	window []models.ActivityLabel
}

// NewActivityClassifier создает новый классификатор активности
func NewActivityClassifier(cfg config.PipelineConfig) *ActivityClassifier {
	return &ActivityClassifier{
		cfg:    cfg,
		window: make([]models.ActivityLabel, 0, cfg.LabelWindowSize),
	}
}

// Reset сбрасывает состояние классификатора
func (c *ActivityClassifier) Reset() {
	c.streak = 0
	c.window = c.window[:0]
}

// Classify возвращает сглаженную метку активности для скорости в км/ч
func (c *ActivityClassifier) Classify(speedKmh float64) models.ActivityLabel {
	label := c.instant(speedKmh)

	c.window = append(c.window, label)
	if len(c.window) > c.cfg.LabelWindowSize {
		c.window = c.window[1:]
	}

	return c.majority()
}

// instant мгновенная классификация с гистерезисом
func (c *ActivityClassifier) instant(speedKmh float64) models.ActivityLabel {
	switch {
	case speedKmh < c.cfg.StationaryMaxKmh:
		c.streak = 0
		return models.ActivityStationary
	case speedKmh < c.cfg.WalkingMaxKmh:
		c.streak = 0
		return models.ActivityWalking
	}

	if speedKmh > c.cfg.StreakSpeedKmh {
		c.streak++
	} else if c.streak > 0 {
		c.streak--
	}

	if c.streak >= c.cfg.StreakRequired {
		if speedKmh > c.cfg.DrivingMinKmh {
			return models.ActivityDriving
		}
		return models.ActivityCycling
	}

	return models.ActivityWalking
}

// majority возвращает самую частую метку окна; при равенстве побеждает
// раньше встреченная метка
func (c *ActivityClassifier) majority() models.ActivityLabel {
	counts := make(map[models.ActivityLabel]int, len(c.window))
	bestCount := 0
	for _, label := range c.window {
		counts[label]++
		if counts[label] > bestCount {
			bestCount = counts[label]
		}
	}

	// При равенстве счетчиков побеждает метка, встреченная в окне раньше
	for _, label := range c.window {
		if counts[label] == bestCount {
			return label
		}
	}

	return c.window[0]
}
