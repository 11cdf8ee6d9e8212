package model

type GardenInput struct {
	OwnerID uint64 `json:"ownerID"`
	Name    string `json:"name"`
	Width   int    `json:"width" binding:"required,gt=0"`
	Height  int    `json:"height" binding:"required,gt=0"`
	Public  bool   `json:"public"`
}

type ResizeInput struct {
	Width  int `json:"width" binding:"required,gt=0"`
	Height int `json:"height" binding:"required,gt=0"`
}

type PlacePlantInput struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	PlantID uint64 `json:"plantID" binding:"required"`
	Notes   string `json:"notes"`
}

type MovePlantInput struct {
	FromX int `json:"fromX"`
	FromY int `json:"fromY"`
	ToX   int `json:"toX"`
	ToY   int `json:"toY"`
}

// GridCellInput is one cell of a bulk layout update. A nil cell or a nil
// PlantID clears the cell.
type GridCellInput struct {
	PlantID *uint64 `json:"plantID"`
	Notes   string  `json:"notes"`
}

// BulkGridInput carries a full replacement layout, row-major by y then x.
type BulkGridInput struct {
	Cells [][]*GridCellInput `json:"cells" binding:"required"`
}

type CareInput struct {
	Care string `json:"care" binding:"required"`
}

type HealthInput struct {
	Health HealthStatus `json:"health" binding:"required"`
}

type PlantInput struct {
	Name          string `json:"name" binding:"required"`
	Species       string `json:"species"`
	WaterDays     int    `json:"waterDays"`
	FertilizeDays int    `json:"fertilizeDays"`
	PruneDays     int    `json:"pruneDays"`
	DaysToHarvest int    `json:"daysToHarvest"`
}

type NotificationPlantInput struct {
	PlantID            uint64 `json:"plantID" binding:"required"`
	CustomIntervalDays *int   `json:"customIntervalDays"`
}

type NotificationInput struct {
	Name         string                   `json:"name" binding:"required"`
	Type         NotificationType         `json:"type" binding:"required"`
	Subtype      string                   `json:"subtype"`
	IntervalDays int                      `json:"intervalDays"`
	Plants       []NotificationPlantInput `json:"plants"`
}
