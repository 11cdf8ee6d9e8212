// Package plantdata talks to the external plant-data API. It supplies care
// frequency defaults and harvest durations, consumed read-only during plant
// creation and notification seeding.
package plantdata

import "context"

// CareDefaults carries a species' default care frequencies in days. Zero
// means the provider has no figure.
type CareDefaults struct {
	WaterDays     int `json:"waterDays"`
	FertilizeDays int `json:"fertilizeDays"`
	PruneDays     int `json:"pruneDays"`
	DaysToHarvest int `json:"daysToHarvest"`
}

type Provider interface {
	CareDefaults(ctx context.Context, species string) (*CareDefaults, error)
}
