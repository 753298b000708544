package models

import "fmt"

// Geofence круговая зона: центр и радиус в метрах.
// Геозоны независимы от треков и проверяются для каждой новой точки.
type Geofence struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Center  GeoPoint `json:"center"`
	RadiusM float64  `json:"radius_m"`
}

// Validate проверяет корректность геозоны
func (g *Geofence) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("geofence id cannot be empty")
	}
	if err := g.Center.Validate(); err != nil {
		return fmt.Errorf("geofence center: %w", err)
	}
	if g.RadiusM <= 0 {
		return fmt.Errorf("geofence radius must be positive: %f", g.RadiusM)
	}
	return nil
}

// Contains проверяет, находится ли точка внутри геозоны
func (g *Geofence) Contains(point GeoPoint) bool {
	return g.Center.DistanceTo(point) <= g.RadiusM
}
