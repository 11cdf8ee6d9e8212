package model

import (
	"time"

	"gorm.io/gorm"
)

type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthHealthy   HealthStatus = "healthy"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
	HealthDying     HealthStatus = "dying"
	HealthDead      HealthStatus = "dead"
)

type NotificationType string

const (
	NotificationPrune     NotificationType = "prune"
	NotificationFertilize NotificationType = "fertilize"
	NotificationHarvest   NotificationType = "harvest"
	NotificationWater     NotificationType = "water"
	NotificationWeather   NotificationType = "weather"
	NotificationOther     NotificationType = "other"
)

type InstanceStatus string

const (
	StatusPending   InstanceStatus = "pending"
	StatusCompleted InstanceStatus = "completed"
	StatusSkipped   InstanceStatus = "skipped"
	StatusMissed    InstanceStatus = "missed"
)

// Plant is the species record the grid places and the scheduler consults.
// Care frequencies are in days, 0 means unknown.
type Plant struct {
	ID            uint64 `json:"id" gorm:"primaryKey"`
	Name          string `json:"name"`
	Species       string `json:"species"`
	WaterDays     int    `json:"waterDays"`
	FertilizeDays int    `json:"fertilizeDays"`
	PruneDays     int    `json:"pruneDays"`
	DaysToHarvest int    `json:"daysToHarvest"`
}

type Garden struct {
	ID        uint64         `json:"id" gorm:"primaryKey"`
	OwnerID   uint64         `json:"ownerID" gorm:"index"`
	Name      string         `json:"name"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	Public    bool           `json:"public"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Placements    []GridPlacement `json:"placements,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Notifications []Notification  `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// GridPlacement is a plant occupying one cell of a garden's grid. At most
// one placement may exist per (garden, x, y).
type GridPlacement struct {
	ID       uint64  `json:"id" gorm:"primaryKey"`
	GardenID uint64  `json:"gardenID" gorm:"uniqueIndex:idx_garden_cell"`
	X        int     `json:"x" gorm:"uniqueIndex:idx_garden_cell"`
	Y        int     `json:"y" gorm:"uniqueIndex:idx_garden_cell"`
	PlantID  *uint64 `json:"plantID"`
	Plant    *Plant  `json:"plant,omitempty" gorm:"constraint:OnDelete:SET NULL"`

	PlantedAt      time.Time    `json:"plantedAt"`
	Notes          string       `json:"notes"`
	Health         HealthStatus `json:"health"`
	GrowthStage    string       `json:"growthStage"`
	LastWatered    *time.Time   `json:"lastWatered"`
	LastFertilized *time.Time   `json:"lastFertilized"`
	LastPruned     *time.Time   `json:"lastPruned"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Notification is a recurring care-task definition scoped to a garden and a
// set of plants. Subtype is set iff Type is NotificationOther.
type Notification struct {
	ID           uint64           `json:"id" gorm:"primaryKey"`
	GardenID     uint64           `json:"gardenID" gorm:"index"`
	Name         string           `json:"name"`
	Type         NotificationType `json:"type"`
	Subtype      string           `json:"subtype"`
	IntervalDays int              `json:"intervalDays"`

	Plants    []NotificationPlant    `json:"plants,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Instances []NotificationInstance `json:"instances,omitempty" gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NotificationPlant links a plant to a notification, optionally overriding
// the notification's recurrence interval for that plant.
type NotificationPlant struct {
	ID                 uint64  `json:"id" gorm:"primaryKey"`
	NotificationID     uint64  `json:"notificationID" gorm:"uniqueIndex:idx_notification_plant"`
	PlantID            *uint64 `json:"plantID" gorm:"uniqueIndex:idx_notification_plant"`
	Plant              *Plant  `json:"plant,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	CustomIntervalDays *int    `json:"customIntervalDays"`
}

// NotificationInstance is one concrete occurrence of a notification. Only
// Pending instances are live; the others are retained as history.
type NotificationInstance struct {
	ID             uint64 `json:"id" gorm:"primaryKey"`
	NotificationID uint64 `json:"notificationID" gorm:"index"`

	NextDue       *time.Time     `json:"nextDue"`
	LastCompleted *time.Time     `json:"lastCompleted"`
	CompletedAt   *time.Time     `json:"completedAt"`
	Message       string         `json:"message"`
	Status        InstanceStatus `json:"status" gorm:"default:pending"`

	Notification *Notification `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CellView is the read-optimized grid projection returned by RenderGrid.
type CellView struct {
	PlacementID uint64       `json:"placementID"`
	PlantID     *uint64      `json:"plantID"`
	PlantName   string       `json:"plantName"`
	Health      HealthStatus `json:"health"`
	GrowthStage string       `json:"growthStage"`
}

func (s HealthStatus) Valid() bool {
	switch s {
	case HealthExcellent, HealthHealthy, HealthFair, HealthPoor, HealthDying, HealthDead:
		return true
	}
	return false
}

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationPrune, NotificationFertilize, NotificationHarvest,
		NotificationWater, NotificationWeather, NotificationOther:
		return true
	}
	return false
}
