package garden

import (
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/greenpatch/greenpatch-backend/events"
	"github.com/greenpatch/greenpatch-backend/garden/model"
)

// Grid owns every mutation of gardens and their placements. Mutations on
// one garden are serialized by a per-garden lock on top of the database
// transaction, so the one-placement-per-cell invariant holds even with
// concurrent writers.
type Grid struct {
	db     *gorm.DB
	events *events.Dispatcher
	locks  sync.Map // gardenID -> *sync.Mutex
}

func NewGrid(db *gorm.DB, dispatcher *events.Dispatcher) *Grid {
	return &Grid{
		db:     db,
		events: dispatcher,
	}
}

func (g *Grid) lock(gardenID uint64) func() {
	v, _ := g.locks.LoadOrStore(gardenID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (g *Grid) garden(tx *gorm.DB, id uint64) (*model.Garden, error) {
	var garden model.Garden
	if err := tx.First(&garden, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.NotFoundError{Resource: "garden", ID: id}
		}
		return nil, err
	}
	return &garden, nil
}

func checkBounds(garden *model.Garden, x, y int) error {
	if x < 0 || y < 0 || x >= garden.Width || y >= garden.Height {
		return &model.OutOfBoundsError{X: x, Y: y, Width: garden.Width, Height: garden.Height}
	}
	return nil
}

func (g *Grid) CreateGarden(in model.GardenInput) (*model.Garden, error) {
	if in.Width <= 0 {
		return nil, &model.ValidationError{Field: "width", Reason: "must be positive"}
	}
	if in.Height <= 0 {
		return nil, &model.ValidationError{Field: "height", Reason: "must be positive"}
	}

	garden := &model.Garden{
		OwnerID: in.OwnerID,
		Name:    in.Name,
		Width:   in.Width,
		Height:  in.Height,
		Public:  in.Public,
	}
	if err := g.db.Create(garden).Error; err != nil {
		return nil, err
	}
	return garden, nil
}

func (g *Grid) Garden(id uint64) (*model.Garden, error) {
	var garden model.Garden
	err := g.db.Preload("Placements.Plant").First(&garden, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Resource: "garden", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &garden, nil
}

func (g *Grid) Gardens(ownerID uint64) ([]model.Garden, error) {
	var gardens []model.Garden
	q := g.db.Order("id")
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Find(&gardens).Error; err != nil {
		return nil, err
	}
	return gardens, nil
}

// UpdateGarden changes the display name and visibility. Dimensions change
// only through Resize.
func (g *Grid) UpdateGarden(id uint64, name string, public bool) (*model.Garden, error) {
	defer g.lock(id)()

	var garden *model.Garden
	err := g.db.Transaction(func(tx *gorm.DB) error {
		var err error
		garden, err = g.garden(tx, id)
		if err != nil {
			return err
		}
		return tx.Model(garden).Updates(map[string]interface{}{"name": name, "public": public}).Error
	})
	if err != nil {
		return nil, err
	}
	return garden, nil
}

func (g *Grid) DeleteGarden(id uint64) error {
	defer g.lock(id)()

	return g.db.Transaction(func(tx *gorm.DB) error {
		garden, err := g.garden(tx, id)
		if err != nil {
			return err
		}

		// The garden row is only soft-deleted, so its notifications must go
		// explicitly or their pending instances would keep surfacing.
		err = tx.Where("garden_id = ?", id).Delete(&model.Notification{}).Error
		if err != nil {
			return err
		}

		return tx.Delete(garden).Error
	})
}

// PlacePlant puts a plant into an empty in-bounds cell.
func (g *Grid) PlacePlant(gardenID uint64, in model.PlacePlantInput) (*model.GridPlacement, error) {
	defer g.lock(gardenID)()

	var placement *model.GridPlacement
	var plant model.Plant

	err := g.db.Transaction(func(tx *gorm.DB) error {
		garden, err := g.garden(tx, gardenID)
		if err != nil {
			return err
		}
		if err := checkBounds(garden, in.X, in.Y); err != nil {
			return err
		}

		var count int64
		err = tx.Model(&model.GridPlacement{}).
			Where("garden_id = ? AND x = ? AND y = ?", gardenID, in.X, in.Y).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return &model.CellOccupiedError{X: in.X, Y: in.Y}
		}

		if err := tx.First(&plant, in.PlantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Resource: "plant", ID: in.PlantID}
			}
			return err
		}

		placement = &model.GridPlacement{
			GardenID:  gardenID,
			X:         in.X,
			Y:         in.Y,
			PlantID:   &plant.ID,
			PlantedAt: time.Now(),
			Notes:     in.Notes,
			Health:    model.HealthHealthy,
		}
		return tx.Create(placement).Error
	})
	if err != nil {
		return nil, err
	}

	placement.Plant = &plant
	g.events.Dispatch(events.PlacementCreated{
		GardenID:    gardenID,
		PlacementID: placement.ID,
		PlantID:     plant.ID,
		X:           in.X,
		Y:           in.Y,
	})
	return placement, nil
}

// RemovePlant clears a cell. Removing an empty cell is a no-op; the bool
// result says whether anything was removed.
func (g *Grid) RemovePlant(gardenID uint64, x, y int) (bool, error) {
	defer g.lock(gardenID)()

	var removed *model.GridPlacement

	err := g.db.Transaction(func(tx *gorm.DB) error {
		if _, err := g.garden(tx, gardenID); err != nil {
			return err
		}

		var placement model.GridPlacement
		err := tx.Where("garden_id = ? AND x = ? AND y = ?", gardenID, x, y).First(&placement).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(&placement).Error; err != nil {
			return err
		}
		removed = &placement
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed == nil {
		return false, nil
	}

	ev := events.PlacementRemoved{GardenID: gardenID, X: x, Y: y}
	if removed.PlantID != nil {
		ev.PlantID = *removed.PlantID
	}
	g.events.Dispatch(ev)
	return true, nil
}

// MovePlant relocates a placement to an empty in-bounds cell. The move is
// atomic with respect to other grid mutations on the same garden.
func (g *Grid) MovePlant(gardenID uint64, in model.MovePlantInput) (*model.GridPlacement, error) {
	defer g.lock(gardenID)()

	var placement model.GridPlacement

	err := g.db.Transaction(func(tx *gorm.DB) error {
		garden, err := g.garden(tx, gardenID)
		if err != nil {
			return err
		}
		if err := checkBounds(garden, in.ToX, in.ToY); err != nil {
			return err
		}

		err = tx.Where("garden_id = ? AND x = ? AND y = ?", gardenID, in.FromX, in.FromY).First(&placement).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.NotFoundError{Resource: "placement"}
		}
		if err != nil {
			return err
		}

		var count int64
		err = tx.Model(&model.GridPlacement{}).
			Where("garden_id = ? AND x = ? AND y = ?", gardenID, in.ToX, in.ToY).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return &model.CellOccupiedError{X: in.ToX, Y: in.ToY}
		}

		return tx.Model(&placement).Updates(map[string]interface{}{"x": in.ToX, "y": in.ToY}).Error
	})
	if err != nil {
		return nil, err
	}

	g.events.Dispatch(events.GardenChanged{GardenID: gardenID})
	return &placement, nil
}

// Resize updates the garden's dimensions without touching placements. It
// returns the count of placements the new bounds strand; eviction is a
// separate, explicit PruneOutOfBounds call.
func (g *Grid) Resize(gardenID uint64, in model.ResizeInput) (int, error) {
	if in.Width <= 0 {
		return 0, &model.ValidationError{Field: "width", Reason: "must be positive"}
	}
	if in.Height <= 0 {
		return 0, &model.ValidationError{Field: "height", Reason: "must be positive"}
	}

	defer g.lock(gardenID)()

	var stranded int64

	err := g.db.Transaction(func(tx *gorm.DB) error {
		garden, err := g.garden(tx, gardenID)
		if err != nil {
			return err
		}

		err = tx.Model(garden).Updates(map[string]interface{}{"width": in.Width, "height": in.Height}).Error
		if err != nil {
			return err
		}

		return tx.Model(&model.GridPlacement{}).
			Where("garden_id = ? AND (x >= ? OR y >= ?)", gardenID, in.Width, in.Height).
			Count(&stranded).Error
	})
	if err != nil {
		return 0, err
	}

	g.events.Dispatch(events.GardenChanged{GardenID: gardenID})
	return int(stranded), nil
}

// PruneOutOfBounds evicts placements stranded by an earlier shrinking
// resize and returns how many were removed.
func (g *Grid) PruneOutOfBounds(gardenID uint64) (int, error) {
	defer g.lock(gardenID)()

	var pruned []model.GridPlacement

	err := g.db.Transaction(func(tx *gorm.DB) error {
		garden, err := g.garden(tx, gardenID)
		if err != nil {
			return err
		}

		err = tx.Where("garden_id = ? AND (x >= ? OR y >= ?)", gardenID, garden.Width, garden.Height).
			Find(&pruned).Error
		if err != nil {
			return err
		}
		if len(pruned) == 0 {
			return nil
		}

		return tx.Where("garden_id = ? AND (x >= ? OR y >= ?)", gardenID, garden.Width, garden.Height).
			Delete(&model.GridPlacement{}).Error
	})
	if err != nil {
		return 0, err
	}

	for _, p := range pruned {
		ev := events.PlacementRemoved{GardenID: gardenID, X: p.X, Y: p.Y}
		if p.PlantID != nil {
			ev.PlantID = *p.PlantID
		}
		g.events.Dispatch(ev)
	}
	return len(pruned), nil
}

// RenderGrid builds a dense height x width matrix, row-major by y then x.
// Cells with no placement are nil. Placements stranded outside the current
// bounds are never rendered.
func (g *Grid) RenderGrid(gardenID uint64) ([][]*model.CellView, error) {
	garden, err := g.garden(g.db, gardenID)
	if err != nil {
		return nil, err
	}

	var placements []model.GridPlacement
	err = g.db.Preload("Plant").
		Where("garden_id = ? AND x < ? AND y < ?", gardenID, garden.Width, garden.Height).
		Find(&placements).Error
	if err != nil {
		return nil, err
	}

	rows := make([][]*model.CellView, garden.Height)
	for y := range rows {
		rows[y] = make([]*model.CellView, garden.Width)
	}

	for _, p := range placements {
		cell := &model.CellView{
			PlacementID: p.ID,
			PlantID:     p.PlantID,
			Health:      p.Health,
			GrowthStage: p.GrowthStage,
		}
		if p.Plant != nil {
			cell.PlantName = p.Plant.Name
		}
		rows[p.Y][p.X] = cell
	}

	return rows, nil
}

// UpdateGridBulk replaces the whole in-bounds placement set with the given
// layout in one transaction. Cells absent from the layout are cleared, new
// cells are created, unchanged cells are left untouched. On any error no
// part of the layout is applied.
func (g *Grid) UpdateGridBulk(gardenID uint64, in model.BulkGridInput) error {
	defer g.lock(gardenID)()

	// Removals dispatch before creations so handlers reacting to a removal
	// see the final committed layout, not an intermediate cell order.
	var removeEvs, createEvs []events.Event

	err := g.db.Transaction(func(tx *gorm.DB) error {
		garden, err := g.garden(tx, gardenID)
		if err != nil {
			return err
		}

		if len(in.Cells) != garden.Height {
			return &model.ValidationError{Field: "cells", Reason: "row count must equal garden height"}
		}
		for _, row := range in.Cells {
			if len(row) != garden.Width {
				return &model.ValidationError{Field: "cells", Reason: "column count must equal garden width"}
			}
		}

		var current []model.GridPlacement
		err = tx.Where("garden_id = ? AND x < ? AND y < ?", gardenID, garden.Width, garden.Height).
			Find(&current).Error
		if err != nil {
			return err
		}

		type cellKey struct{ x, y int }
		existing := make(map[cellKey]*model.GridPlacement, len(current))
		for i := range current {
			existing[cellKey{current[i].X, current[i].Y}] = &current[i]
		}

		for y, row := range in.Cells {
			for x, cell := range row {
				cur := existing[cellKey{x, y}]

				wantEmpty := cell == nil || cell.PlantID == nil
				if wantEmpty {
					if cur == nil {
						continue
					}
					if err := tx.Delete(cur).Error; err != nil {
						return err
					}
					ev := events.PlacementRemoved{GardenID: gardenID, X: x, Y: y}
					if cur.PlantID != nil {
						ev.PlantID = *cur.PlantID
					}
					removeEvs = append(removeEvs, ev)
					continue
				}

				if cur != nil && cur.PlantID != nil && *cur.PlantID == *cell.PlantID {
					continue
				}

				if cur != nil {
					if err := tx.Delete(cur).Error; err != nil {
						return err
					}
					ev := events.PlacementRemoved{GardenID: gardenID, X: x, Y: y}
					if cur.PlantID != nil {
						ev.PlantID = *cur.PlantID
					}
					removeEvs = append(removeEvs, ev)
				}

				var plant model.Plant
				if err := tx.First(&plant, *cell.PlantID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return &model.NotFoundError{Resource: "plant", ID: *cell.PlantID}
					}
					return err
				}

				placement := &model.GridPlacement{
					GardenID:  gardenID,
					X:         x,
					Y:         y,
					PlantID:   &plant.ID,
					PlantedAt: time.Now(),
					Notes:     cell.Notes,
					Health:    model.HealthHealthy,
				}
				if err := tx.Create(placement).Error; err != nil {
					return err
				}
				createEvs = append(createEvs, events.PlacementCreated{
					GardenID:    gardenID,
					PlacementID: placement.ID,
					PlantID:     plant.ID,
					X:           x,
					Y:           y,
				})
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	evs := append(removeEvs, createEvs...)
	evs = append(evs, events.GardenChanged{GardenID: gardenID})
	g.events.Dispatch(evs...)
	return nil
}
