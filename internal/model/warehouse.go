package model

import (
	"math"
	"strings"
	"time"
)

type WarehouseType string

const (
	WarehouseFulfillmentCenter WarehouseType = "FULFILLMENT_CENTER"
	WarehouseRetailStore       WarehouseType = "RETAIL_STORE"
	WarehouseThirdParty        WarehouseType = "THIRD_PARTY"
	WarehouseCrossDock         WarehouseType = "CROSS_DOCK"
	WarehouseReturnsCenter     WarehouseType = "RETURNS_CENTER"
	WarehouseDropShip          WarehouseType = "DROP_SHIP"
)

func (t WarehouseType) IsValid() bool {
	switch t {
	case WarehouseFulfillmentCenter, WarehouseRetailStore, WarehouseThirdParty,
		WarehouseCrossDock, WarehouseReturnsCenter, WarehouseDropShip:
		return true
	}
	return false
}

const earthRadiusKm = 6371.0

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Warehouse struct {
	ID                string        `db:"id" json:"id"`
	Code              string        `db:"code" json:"code"`
	Name              string        `db:"name" json:"name"`
	Type              WarehouseType `db:"warehouse_type" json:"warehouse_type"`
	AddressLine       string        `db:"address_line" json:"address_line,omitempty"`
	City              string        `db:"city" json:"city,omitempty"`
	PostalCode        string        `db:"postal_code" json:"postal_code,omitempty"`
	CountryCode       string        `db:"country_code" json:"country_code"`
	Latitude          *float64      `db:"latitude" json:"latitude,omitempty"`
	Longitude         *float64      `db:"longitude" json:"longitude,omitempty"`
	Capacity          int           `db:"capacity" json:"capacity"`
	Utilization       int           `db:"utilization" json:"utilization"`
	Priority          int           `db:"priority" json:"priority"`
	IsActive          bool          `db:"is_active" json:"is_active"`
	AcceptsReturns    bool          `db:"accepts_returns" json:"accepts_returns"`
	AcceptsInbound    bool          `db:"accepts_inbound" json:"accepts_inbound"`
	SupportedCarriers StringList    `db:"supported_carriers" json:"supported_carriers"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

func (w *Warehouse) Location() (GeoPoint, bool) {
	if w.Latitude == nil || w.Longitude == nil {
		return GeoPoint{}, false
	}
	return GeoPoint{Latitude: *w.Latitude, Longitude: *w.Longitude}, true
}

// DistanceTo returns the great-circle distance in km. ok is false when the
// warehouse has no coordinates.
func (w *Warehouse) DistanceTo(p GeoPoint) (float64, bool) {
	loc, ok := w.Location()
	if !ok {
		return math.Inf(1), false
	}
	return Haversine(loc, p), true
}

func Haversine(a, b GeoPoint) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func (w *Warehouse) SupportsCarrier(code string) bool {
	for _, c := range w.SupportedCarriers {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

func (w *Warehouse) ServesCountry(code string) bool {
	return code == "" || strings.EqualFold(w.CountryCode, code)
}

func (w *Warehouse) UtilizationRatio() float64 {
	if w.Capacity <= 0 {
		return 0
	}
	return float64(w.Utilization) / float64(w.Capacity)
}

func (w *Warehouse) Validate() error {
	if strings.TrimSpace(w.Code) == "" {
		return NewInvalidInput("code", "is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return NewInvalidInput("name", "is required")
	}
	if !w.Type.IsValid() {
		return NewInvalidInput("warehouse_type", "unknown type "+string(w.Type))
	}
	if w.Capacity < 0 {
		return NewInvalidInput("capacity", "must not be negative")
	}
	if w.Utilization < 0 {
		return NewInvalidInput("utilization", "must not be negative")
	}
	if (w.Latitude == nil) != (w.Longitude == nil) {
		return NewInvalidInput("location", "latitude and longitude must be set together")
	}
	return nil
}
