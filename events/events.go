package events

import (
	"log"
	"sync"
	"time"
)

// Event is a typed domain event emitted by grid and care mutations. Events
// are collected inside the transaction that caused them and dispatched only
// after it commits.
type Event interface {
	EventName() string
}

type PlacementCreated struct {
	GardenID    uint64
	PlacementID uint64
	PlantID     uint64
	X, Y        int
}

func (PlacementCreated) EventName() string { return "placement.created" }

type PlacementRemoved struct {
	GardenID uint64
	PlantID  uint64
	X, Y     int
}

func (PlacementRemoved) EventName() string { return "placement.removed" }

type HealthChanged struct {
	GardenID    uint64
	PlacementID uint64
	PlantID     uint64
	From, To    string
}

func (HealthChanged) EventName() string { return "placement.health" }

// CareRecorded fires when a care timestamp on a placement moves to a new
// non-null value. Care is one of "water", "fertilize", "prune".
type CareRecorded struct {
	GardenID uint64
	PlantID  uint64
	Care     string
	At       time.Time
}

func (CareRecorded) EventName() string { return "care.recorded" }

// GardenChanged fires on mutations that reshape the grid without a single
// placement delta (resize, move, bulk update).
type GardenChanged struct {
	GardenID uint64
}

func (GardenChanged) EventName() string { return "garden.changed" }

type Handler func(Event)

// Dispatcher routes events to registered handlers synchronously, in
// registration order. It is owned by the composition root; components
// receive it by injection.
type Dispatcher struct {
	mutex    sync.RWMutex
	handlers map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
	}
}

func (d *Dispatcher) Register(name string, h Handler) *Dispatcher {
	d.mutex.Lock()
	d.handlers[name] = append(d.handlers[name], h)
	d.mutex.Unlock()
	return d
}

func (d *Dispatcher) Dispatch(evs ...Event) {
	for _, ev := range evs {
		d.mutex.RLock()
		handlers := d.handlers[ev.EventName()]
		d.mutex.RUnlock()

		for _, h := range handlers {
			d.call(ev, h)
		}
	}
}

func (d *Dispatcher) call(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("event handler panic on", ev.EventName(), r)
		}
	}()
	h(ev)
}
