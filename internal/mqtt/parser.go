package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aragnam/BTMliveTrackerApp/internal/models"
	"github.com/aragnam/BTMliveTrackerApp/pkg/utils"
)

// FixMessage распарсенное сообщение с сырым фиксом от устройства
type FixMessage struct {
	DeviceID string         `json:"device_id"`
	Fix      *models.RawFix `json:"fix"`
}

// fixPayload формат JSON полезной нагрузки на топике trk/{device}/fix.
// Опциональные поля могут отсутствовать; отсутствие отличается от нуля.
type fixPayload struct {
	Latitude  float64  `json:"lat"`
	Longitude float64  `json:"lon"`
	Accuracy  float64  `json:"accuracy"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	SpeedMs   *float64 `json:"speed,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Parser разбирает MQTT сообщения устройств
type Parser struct {
	logger *utils.Logger
}

// NewParser создает новый парсер
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse разбирает сообщение. Невалидные координаты отклоняются здесь,
// до входа в конвейер.
func (p *Parser) Parse(topic string, payload []byte) (*FixMessage, error) {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		return nil, err
	}

	var body fixPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("failed to decode fix payload: %w", err)
	}

	fix := &models.RawFix{
		Position: models.GeoPoint{
			Latitude:  body.Latitude,
			Longitude: body.Longitude,
		},
		AccuracyM: body.Accuracy,
		Altitude:  body.Altitude,
		Heading:   body.Heading,
		SpeedMs:   body.SpeedMs,
		Timestamp: body.Timestamp,
	}

	if err := fix.Validate(); err != nil {
		return nil, fmt.Errorf("rejected fix from %s: %w", deviceID, err)
	}

	return &FixMessage{DeviceID: deviceID, Fix: fix}, nil
}

// deviceFromTopic извлекает идентификатор устройства из топика trk/{device}/fix
func deviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "trk" || parts[2] != "fix" || parts[1] == "" {
		return "", fmt.Errorf("unexpected topic format: %s", topic)
	}
	return parts[1], nil
}
