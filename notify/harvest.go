package notify

import (
	"time"

	"github.com/greenpatch/greenpatch-backend/garden/model"
)

// IsHarvestReady gates harvest reminders: a harvest-type notification only
// surfaces once at least one of its plants has a placement in the garden
// that has grown for its species' days-to-harvest. Non-harvest types are
// always ready.
func (s *Scheduler) IsHarvestReady(n *model.Notification) (bool, error) {
	if n.Type != model.NotificationHarvest {
		return true, nil
	}

	loc := s.settings.Location()
	today := midnight(s.now(), loc)

	for _, assoc := range n.Plants {
		if assoc.PlantID == nil {
			continue
		}

		var plant model.Plant
		if assoc.Plant != nil {
			plant = *assoc.Plant
		} else if err := s.db.First(&plant, *assoc.PlantID).Error; err != nil {
			continue
		}
		if plant.DaysToHarvest <= 0 {
			continue
		}

		var placements []model.GridPlacement
		err := s.db.Where("garden_id = ? AND plant_id = ?", n.GardenID, *assoc.PlantID).
			Find(&placements).Error
		if err != nil {
			return false, err
		}

		for _, p := range placements {
			// Calendar days, not elapsed hours: a plant sown on day zero is
			// ready the moment the harvest date arrives, whatever the clock.
			ready := midnight(p.PlantedAt, loc).AddDate(0, 0, plant.DaysToHarvest)
			if !today.Before(ready) {
				return true, nil
			}
		}
	}

	return false, nil
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ActiveInstances returns all pending instances ordered by due date, with
// harvest reminders that are not yet ready filtered out.
func (s *Scheduler) ActiveInstances() ([]model.NotificationInstance, error) {
	var pending []model.NotificationInstance
	err := s.db.Preload("Notification.Plants.Plant").
		Where("status = ?", model.StatusPending).
		Order("next_due").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}

	active := pending[:0]
	for i := range pending {
		inst := pending[i]
		if inst.Notification != nil {
			ready, err := s.IsHarvestReady(inst.Notification)
			if err != nil {
				return nil, err
			}
			if !ready {
				continue
			}
		}
		active = append(active, inst)
	}

	return active, nil
}
