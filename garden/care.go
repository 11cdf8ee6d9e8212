package garden

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/greenpatch/greenpatch-backend/events"
	"github.com/greenpatch/greenpatch-backend/garden/model"
)

const (
	CareWater     = "water"
	CareFertilize = "fertilize"
	CarePrune     = "prune"
)

// RecordCare stamps a watering/fertilizing/pruning on a placement and
// announces it, so matching pending reminders get completed.
func (g *Grid) RecordCare(placementID uint64, care string) (*model.GridPlacement, error) {
	var column string
	switch care {
	case CareWater:
		column = "last_watered"
	case CareFertilize:
		column = "last_fertilized"
	case CarePrune:
		column = "last_pruned"
	default:
		return nil, &model.ValidationError{Field: "care", Reason: "must be water, fertilize or prune"}
	}

	var placement model.GridPlacement
	now := time.Now()

	err := g.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&placement, placementID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.NotFoundError{Resource: "placement", ID: placementID}
		}
		if err != nil {
			return err
		}
		return tx.Model(&placement).Update(column, now).Error
	})
	if err != nil {
		return nil, err
	}

	ev := events.CareRecorded{GardenID: placement.GardenID, Care: care, At: now}
	if placement.PlantID != nil {
		ev.PlantID = *placement.PlantID
	}
	g.events.Dispatch(ev)
	return &placement, nil
}

// SetHealth changes a placement's health status and announces the
// transition.
func (g *Grid) SetHealth(placementID uint64, health model.HealthStatus) (*model.GridPlacement, error) {
	if !health.Valid() {
		return nil, &model.ValidationError{Field: "health", Reason: "unknown health status"}
	}

	var placement model.GridPlacement
	var previous model.HealthStatus

	err := g.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&placement, placementID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.NotFoundError{Resource: "placement", ID: placementID}
		}
		if err != nil {
			return err
		}
		previous = placement.Health
		return tx.Model(&placement).Update("health", health).Error
	})
	if err != nil {
		return nil, err
	}

	if previous != health {
		ev := events.HealthChanged{
			GardenID:    placement.GardenID,
			PlacementID: placement.ID,
			From:        string(previous),
			To:          string(health),
		}
		if placement.PlantID != nil {
			ev.PlantID = *placement.PlantID
		}
		g.events.Dispatch(ev)
	}
	return &placement, nil
}

// SetGrowthStage updates the free-text growth stage label.
func (g *Grid) SetGrowthStage(placementID uint64, stage string) (*model.GridPlacement, error) {
	var placement model.GridPlacement
	err := g.db.First(&placement, placementID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Resource: "placement", ID: placementID}
	}
	if err != nil {
		return nil, err
	}
	if err := g.db.Model(&placement).Update("growth_stage", stage).Error; err != nil {
		return nil, err
	}
	return &placement, nil
}
