package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/greenpatch/greenpatch-backend/events"
	"github.com/greenpatch/greenpatch-backend/garden"
	"github.com/greenpatch/greenpatch-backend/garden/model"
	"github.com/greenpatch/greenpatch-backend/plantdata"
)

const (
	SubtypeHealthAlert       = "health-alert"
	SubtypeHealthImprovement = "health-improvement"
)

// RegisterHooks subscribes the scheduler's side effects to the grid's
// domain events: seeding on placement, bulk completion on care events,
// health alerts and cleanup on removal.
func (s *Scheduler) RegisterHooks(dispatcher *events.Dispatcher, provider plantdata.Provider) {
	dispatcher.Register("placement.created", func(ev events.Event) {
		e := ev.(events.PlacementCreated)
		if err := s.seedCareNotifications(e, provider); err != nil {
			log.Println("seed care notifications:", err)
		}
	})
	dispatcher.Register("care.recorded", func(ev events.Event) {
		e := ev.(events.CareRecorded)
		if _, err := s.CompleteMatching(e.GardenID, e.PlantID, e.Care); err != nil {
			log.Println("complete matching instances:", err)
		}
	})
	dispatcher.Register("placement.health", func(ev events.Event) {
		e := ev.(events.HealthChanged)
		if err := s.handleHealthChange(e); err != nil {
			log.Println("health change notification:", err)
		}
	})
	dispatcher.Register("placement.removed", func(ev events.Event) {
		e := ev.(events.PlacementRemoved)
		if e.PlantID == 0 {
			return
		}
		if err := s.CleanupForPlant(e.GardenID, e.PlantID); err != nil {
			log.Println("cleanup notifications:", err)
		}
	})
}

var careTypes = map[string]model.NotificationType{
	garden.CareWater:     model.NotificationWater,
	garden.CareFertilize: model.NotificationFertilize,
	garden.CarePrune:     model.NotificationPrune,
}

// seedCareNotifications creates one recurring reminder per positive care
// frequency of the newly placed plant. Frequencies missing on the plant
// record are looked up from the external provider; a provider failure just
// leaves them unknown.
func (s *Scheduler) seedCareNotifications(ev events.PlacementCreated, provider plantdata.Provider) error {
	var plant model.Plant
	if err := s.db.First(&plant, ev.PlantID).Error; err != nil {
		return err
	}

	if plant.WaterDays == 0 && plant.FertilizeDays == 0 && plant.PruneDays == 0 && provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		defaults, err := provider.CareDefaults(ctx, plant.Species)
		if err != nil {
			log.Println("plant api lookup failed:", err)
		} else {
			plant.WaterDays = defaults.WaterDays
			plant.FertilizeDays = defaults.FertilizeDays
			plant.PruneDays = defaults.PruneDays
			if plant.DaysToHarvest == 0 {
				plant.DaysToHarvest = defaults.DaysToHarvest
			}
			if err := s.db.Save(&plant).Error; err != nil {
				return err
			}
		}
	}

	frequencies := map[model.NotificationType]int{
		model.NotificationWater:     plant.WaterDays,
		model.NotificationFertilize: plant.FertilizeDays,
		model.NotificationPrune:     plant.PruneDays,
	}

	for _, t := range []model.NotificationType{model.NotificationWater, model.NotificationFertilize, model.NotificationPrune} {
		days := frequencies[t]
		if days <= 0 {
			continue
		}

		taken, err := plantHasType(s.db, ev.GardenID, plant.ID, t)
		if err != nil {
			return err
		}
		if taken {
			continue
		}

		plantID := plant.ID
		_, err = s.create(ev.GardenID, model.Notification{
			Name:         fmt.Sprintf("%s %s", plant.Name, t),
			Type:         t,
			IntervalDays: days,
			Plants:       []model.NotificationPlant{{PlantID: &plantID}},
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// create stores an internally built notification plus its seed instance,
// bypassing input validation the callers already guarantee.
func (s *Scheduler) create(gardenID uint64, n model.Notification) (*model.Notification, error) {
	n.GardenID = gardenID

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&n).Error; err != nil {
			return err
		}
		due := s.now().AddDate(0, 0, n.IntervalDays)
		seed := model.NotificationInstance{
			NotificationID: n.ID,
			NextDue:        &due,
			Status:         model.StatusPending,
			Message:        n.Name,
		}
		return tx.Create(&seed).Error
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CompleteMatching applies complete semantics to every pending instance of
// the matching care type for the plant in the garden. Returns how many were
// completed.
func (s *Scheduler) CompleteMatching(gardenID, plantID uint64, care string) (int, error) {
	t, ok := careTypes[care]
	if !ok {
		return 0, &model.ValidationError{Field: "care", Reason: "unknown care type"}
	}

	var pending []model.NotificationInstance
	err := s.db.Preload("Notification.Plants").
		Joins("JOIN notifications ON notifications.id = notification_instances.notification_id").
		Joins("JOIN notification_plants ON notification_plants.notification_id = notifications.id").
		Where("notification_instances.status = ?", model.StatusPending).
		Where("notifications.garden_id = ? AND notifications.type = ?", gardenID, t).
		Where("notification_plants.plant_id = ?", plantID).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range pending {
		if _, err := s.Complete(pending[i].ID); err != nil {
			return completed, err
		}
		completed++
	}
	return completed, nil
}

// handleHealthChange raises one-off informational reminders: an alert when
// a plant drops into poor health (at most once per plant and garden), an
// improvement note when it recovers from poor or dying.
func (s *Scheduler) handleHealthChange(ev events.HealthChanged) error {
	if ev.PlantID == 0 {
		return nil
	}

	from := model.HealthStatus(ev.From)
	to := model.HealthStatus(ev.To)

	var plant model.Plant
	if err := s.db.First(&plant, ev.PlantID).Error; err != nil {
		return err
	}
	plantID := plant.ID

	if to == model.HealthPoor {
		var count int64
		err := s.db.Model(&model.Notification{}).
			Joins("JOIN notification_plants ON notification_plants.notification_id = notifications.id").
			Where("notifications.garden_id = ? AND notifications.type = ? AND notifications.subtype = ?",
				ev.GardenID, model.NotificationOther, SubtypeHealthAlert).
			Where("notification_plants.plant_id = ?", ev.PlantID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		_, err = s.create(ev.GardenID, model.Notification{
			Name:         fmt.Sprintf("%s needs attention", plant.Name),
			Type:         model.NotificationOther,
			Subtype:      SubtypeHealthAlert,
			IntervalDays: 1,
			Plants:       []model.NotificationPlant{{PlantID: &plantID}},
		})
		return err
	}

	recovered := (from == model.HealthPoor || from == model.HealthDying) &&
		(to == model.HealthHealthy || to == model.HealthExcellent)
	if recovered {
		_, err := s.create(ev.GardenID, model.Notification{
			Name:         fmt.Sprintf("%s is doing better", plant.Name),
			Type:         model.NotificationOther,
			Subtype:      SubtypeHealthImprovement,
			IntervalDays: 1,
			Plants:       []model.NotificationPlant{{PlantID: &plantID}},
		})
		return err
	}

	return nil
}

// CleanupForPlant runs after a plant leaves a garden cell: notifications
// whose only plant is the removed one are deleted, shared ones just lose
// the association. A plant that still occupies another cell of the garden
// keeps its reminders untouched.
func (s *Scheduler) CleanupForPlant(gardenID, plantID uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var remaining int64
		err := tx.Model(&model.GridPlacement{}).
			Where("garden_id = ? AND plant_id = ?", gardenID, plantID).
			Count(&remaining).Error
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		var notifications []model.Notification
		err = tx.Preload("Plants").
			Joins("JOIN notification_plants ON notification_plants.notification_id = notifications.id").
			Where("notifications.garden_id = ? AND notification_plants.plant_id = ?", gardenID, plantID).
			Find(&notifications).Error
		if err != nil {
			return err
		}

		for i := range notifications {
			n := &notifications[i]
			if len(n.Plants) <= 1 {
				if err := tx.Delete(n).Error; err != nil {
					return err
				}
				continue
			}

			err := tx.Where("notification_id = ? AND plant_id = ?", n.ID, plantID).
				Delete(&model.NotificationPlant{}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
