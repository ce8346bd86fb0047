package dto

import "github.com/fekuna/omnipos-stock-service/internal/model"

type WarehouseFilters struct {
	ActiveOnly  bool
	CountryCode string
}

type CreateWarehouseInput struct {
	Code              string
	Name              string
	Type              model.WarehouseType
	AddressLine       string
	City              string
	PostalCode        string
	CountryCode       string
	Latitude          *float64
	Longitude         *float64
	Capacity          int
	Priority          int
	AcceptsReturns    bool
	AcceptsInbound    bool
	SupportedCarriers []string
}

// UpdateWarehouseInput patches only the fields that are set.
type UpdateWarehouseInput struct {
	ID                string
	Name              *string
	IsActive          *bool
	Priority          *int
	Capacity          *int
	Utilization       *int
	AcceptsReturns    *bool
	AcceptsInbound    *bool
	SupportedCarriers []string
}
