// Package notify owns the lifecycle of recurring care reminders: creation,
// due-date math, complete/skip/miss transitions and harvest gating.
package notify

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/greenpatch/greenpatch-backend/garden"
	"github.com/greenpatch/greenpatch-backend/garden/model"
)

type Scheduler struct {
	db       *gorm.DB
	settings *garden.Settings

	now func() time.Time
}

func NewScheduler(db *gorm.DB, settings *garden.Settings) *Scheduler {
	return &Scheduler{
		db:       db,
		settings: settings,
		now:      time.Now,
	}
}

func validateNotification(in model.NotificationInput) error {
	if !in.Type.Valid() {
		return &model.ValidationError{Field: "type", Reason: "unknown notification type"}
	}
	if in.Type == model.NotificationOther && in.Subtype == "" {
		return &model.ValidationError{Field: "subtype", Reason: "required when type is other"}
	}
	if in.Type != model.NotificationOther && in.Subtype != "" {
		return &model.ValidationError{Field: "subtype", Reason: "only allowed when type is other"}
	}
	if in.IntervalDays <= 0 {
		return &model.ValidationError{Field: "intervalDays", Reason: "must be positive"}
	}
	return nil
}

// Create validates and stores a notification with its plant associations
// and seeds the first pending instance.
func (s *Scheduler) Create(gardenID uint64, in model.NotificationInput) (*model.Notification, error) {
	if err := validateNotification(in); err != nil {
		return nil, err
	}

	var notification *model.Notification

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var g model.Garden
		if err := tx.First(&g, gardenID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Resource: "garden", ID: gardenID}
			}
			return err
		}

		notification = &model.Notification{
			GardenID:     gardenID,
			Name:         in.Name,
			Type:         in.Type,
			Subtype:      in.Subtype,
			IntervalDays: in.IntervalDays,
		}

		for _, p := range in.Plants {
			var plant model.Plant
			if err := tx.First(&plant, p.PlantID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &model.NotFoundError{Resource: "plant", ID: p.PlantID}
				}
				return err
			}

			taken, err := plantHasType(tx, gardenID, p.PlantID, in.Type)
			if err != nil {
				return err
			}
			if taken {
				return &model.ValidationError{
					Field:  "plants",
					Reason: fmt.Sprintf("plant %d already has a %s notification in this garden", p.PlantID, in.Type),
				}
			}

			plantID := p.PlantID
			notification.Plants = append(notification.Plants, model.NotificationPlant{
				PlantID:            &plantID,
				CustomIntervalDays: p.CustomIntervalDays,
			})
		}

		if err := tx.Create(notification).Error; err != nil {
			return err
		}

		due := s.now().AddDate(0, 0, in.IntervalDays)
		seed := model.NotificationInstance{
			NotificationID: notification.ID,
			NextDue:        &due,
			Status:         model.StatusPending,
			Message:        in.Name,
		}
		return tx.Create(&seed).Error
	})
	if err != nil {
		return nil, err
	}

	return notification, nil
}

// plantHasType reports whether the plant already carries a notification of
// the given type in the garden. A plant cannot have two water reminders in
// one garden.
func plantHasType(tx *gorm.DB, gardenID, plantID uint64, t model.NotificationType) (bool, error) {
	var count int64
	err := tx.Model(&model.NotificationPlant{}).
		Joins("JOIN notifications ON notifications.id = notification_plants.notification_id").
		Where("notifications.garden_id = ? AND notifications.type = ? AND notification_plants.plant_id = ?",
			gardenID, t, plantID).
		Count(&count).Error
	return count > 0, err
}

func (s *Scheduler) Notifications(gardenID uint64) ([]model.Notification, error) {
	var notifications []model.Notification
	err := s.db.Preload("Plants.Plant").Preload("Instances").
		Where("garden_id = ?", gardenID).
		Order("id").
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (s *Scheduler) Delete(notificationID uint64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var notification model.Notification
		if err := tx.First(&notification, notificationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Resource: "notification", ID: notificationID}
			}
			return err
		}
		return tx.Delete(&notification).Error
	})
}

// effectiveInterval resolves the recurrence interval for a notification.
// The notification's own interval governs unless per-plant overrides are
// enabled, in which case the smallest override among its plants wins.
func (s *Scheduler) effectiveInterval(n *model.Notification) int {
	if s.settings.UseCustomIntervalPerPlant {
		best := 0
		for _, assoc := range n.Plants {
			if assoc.CustomIntervalDays == nil || *assoc.CustomIntervalDays <= 0 {
				continue
			}
			if best == 0 || *assoc.CustomIntervalDays < best {
				best = *assoc.CustomIntervalDays
			}
		}
		if best > 0 {
			return best
		}
	}
	return n.IntervalDays
}

func (s *Scheduler) instance(tx *gorm.DB, id uint64) (*model.NotificationInstance, error) {
	var inst model.NotificationInstance
	err := tx.Preload("Notification.Plants").First(&inst, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Resource: "instance", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// Complete marks a pending instance done and advances its due date by the
// effective interval. With spawnOnComplete a fresh pending sibling carries
// the advanced date instead.
func (s *Scheduler) Complete(instanceID uint64) (*model.NotificationInstance, error) {
	return s.finish(instanceID, "complete")
}

// Skip dismisses a pending instance without recording a completion.
func (s *Scheduler) Skip(instanceID uint64) (*model.NotificationInstance, error) {
	return s.finish(instanceID, "skip")
}

func (s *Scheduler) finish(instanceID uint64, op string) (*model.NotificationInstance, error) {
	var inst *model.NotificationInstance

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		inst, err = s.instance(tx, instanceID)
		if err != nil {
			return err
		}
		if inst.Status != model.StatusPending {
			return &model.InvalidTransitionError{Op: op, From: inst.Status}
		}

		now := s.now()
		next := now.AddDate(0, 0, s.effectiveInterval(inst.Notification))

		inst.NextDue = &next
		if op == "complete" {
			inst.Status = model.StatusCompleted
			inst.LastCompleted = &now
			inst.CompletedAt = &now
		} else {
			inst.Status = model.StatusSkipped
		}

		if err := tx.Save(inst).Error; err != nil {
			return err
		}

		if s.settings.SpawnOnComplete {
			sibling := model.NotificationInstance{
				NotificationID: inst.NotificationID,
				NextDue:        &next,
				Status:         model.StatusPending,
				Message:        inst.Message,
			}
			return tx.Create(&sibling).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// AutoProcessOverdue marks every pending instance older than the threshold
// as missed, advances its due date and spawns a pending sibling so the
// reminder stays live while the missed record remains as history. It
// returns the processed count and the threshold used.
func (s *Scheduler) AutoProcessOverdue(thresholdDays int) (int, int, error) {
	if thresholdDays <= 0 {
		thresholdDays = s.settings.OverdueThresholdDays
	}

	now := s.now()
	cutoff := now.AddDate(0, 0, -thresholdDays)

	var stale []model.NotificationInstance
	err := s.db.Preload("Notification.Plants").
		Where("status = ? AND next_due IS NOT NULL AND next_due < ?", model.StatusPending, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, thresholdDays, err
	}

	processed := 0
	for i := range stale {
		inst := &stale[i]
		next := now.AddDate(0, 0, s.effectiveInterval(inst.Notification))

		err := s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&model.NotificationInstance{}).
				Where("id = ? AND status = ?", inst.ID, model.StatusPending).
				Updates(map[string]interface{}{"status": model.StatusMissed, "next_due": next})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// raced with a concurrent transition, leave it alone
				return nil
			}

			sibling := model.NotificationInstance{
				NotificationID: inst.NotificationID,
				NextDue:        &next,
				Status:         model.StatusPending,
				Message:        inst.Message,
			}
			if err := tx.Create(&sibling).Error; err != nil {
				return err
			}
			processed++
			return nil
		})
		if err != nil {
			return processed, thresholdDays, err
		}
	}

	return processed, thresholdDays, nil
}

// IsOverdue reports whether the instance's due date has passed. An instance
// with no due date is never overdue.
func (s *Scheduler) IsOverdue(inst *model.NotificationInstance) bool {
	if inst.NextDue == nil {
		return false
	}
	return s.now().After(*inst.NextDue)
}
