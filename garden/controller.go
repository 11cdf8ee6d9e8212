package garden

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/greenpatch/greenpatch-backend/events"
	"github.com/greenpatch/greenpatch-backend/garden/model"
)

type Controller interface {
	DB() *gorm.DB
	Settings() *Settings
	Grid() *Grid
	Events() *events.Dispatcher
	GardenChannel(ctx context.Context, gardenID uint64) chan *model.Garden
}

type controller struct {
	db         *gorm.DB
	settings   *Settings
	grid       *Grid
	dispatcher *events.Dispatcher

	mutex          sync.RWMutex
	gardenChannels map[string]gardenSubscriber
}

type gardenSubscriber struct {
	gardenID uint64
	ch       chan *model.Garden
}

func NewController(settingsPath string) (Controller, error) {
	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(settings.DatabasePath)
	if err != nil {
		return nil, err
	}

	dispatcher := events.NewDispatcher()

	c := &controller{
		db:             db,
		settings:       settings,
		grid:           NewGrid(db, dispatcher),
		dispatcher:     dispatcher,
		gardenChannels: make(map[string]gardenSubscriber),
	}

	for _, name := range []string{"placement.created", "placement.removed", "placement.health", "garden.changed"} {
		dispatcher.Register(name, c.pushGarden)
	}

	return c, nil
}

// OpenDB opens the sqlite database, enables foreign keys and migrates the
// schema.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if r := db.Exec("PRAGMA foreign_keys = ON"); r.Error != nil {
		return nil, r.Error
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Plant{},
		&model.Garden{},
		&model.GridPlacement{},
		&model.Notification{},
		&model.NotificationPlant{},
		&model.NotificationInstance{},
	)
}

func (c *controller) DB() *gorm.DB               { return c.db }
func (c *controller) Settings() *Settings        { return c.settings }
func (c *controller) Grid() *Grid                { return c.grid }
func (c *controller) Events() *events.Dispatcher { return c.dispatcher }

// GardenChannel subscribes to live snapshots of one garden. The channel is
// dropped when ctx is done.
func (c *controller) GardenChannel(ctx context.Context, gardenID uint64) chan *model.Garden {
	ch := make(chan *model.Garden, 8)
	id := uuid.NewString()

	c.mutex.Lock()
	c.gardenChannels[id] = gardenSubscriber{gardenID: gardenID, ch: ch}
	c.mutex.Unlock()

	go func() {
		<-ctx.Done()
		c.mutex.Lock()
		delete(c.gardenChannels, id)
		c.mutex.Unlock()

		log.Println("garden subscriber closed", id)
	}()

	return ch
}

func (c *controller) pushGarden(ev events.Event) {
	var gardenID uint64
	switch e := ev.(type) {
	case events.PlacementCreated:
		gardenID = e.GardenID
	case events.PlacementRemoved:
		gardenID = e.GardenID
	case events.HealthChanged:
		gardenID = e.GardenID
	case events.GardenChanged:
		gardenID = e.GardenID
	default:
		return
	}

	var garden model.Garden
	if err := c.db.Preload("Placements.Plant").First(&garden, gardenID).Error; err != nil {
		log.Println("push garden:", err)
		return
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, sub := range c.gardenChannels {
		if sub.gardenID != gardenID {
			continue
		}
		select {
		case sub.ch <- &garden:
		default:
			// slow subscriber, drop the snapshot
		}
	}
}
