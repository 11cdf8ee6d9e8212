package garden

import (
	"gorm.io/gorm"

	"github.com/greenpatch/greenpatch-backend/garden/model"
	"github.com/greenpatch/greenpatch-backend/search"
)

// GardenSource exposes gardens to the search registry.
type GardenSource struct {
	db *gorm.DB
}

func NewGardenSource(db *gorm.DB) *GardenSource {
	return &GardenSource{db: db}
}

func (s *GardenSource) SearchDocuments() ([]search.Document, error) {
	var gardens []model.Garden
	if err := s.db.Find(&gardens).Error; err != nil {
		return nil, err
	}

	docs := make([]search.Document, len(gardens))
	for i, g := range gardens {
		docs[i] = search.Document{
			Kind:  "garden",
			ID:    g.ID,
			Title: g.Name,
		}
	}
	return docs, nil
}

// PlantSource exposes plants to the search registry, matchable by name and
// species.
type PlantSource struct {
	db *gorm.DB
}

func NewPlantSource(db *gorm.DB) *PlantSource {
	return &PlantSource{db: db}
}

func (s *PlantSource) SearchDocuments() ([]search.Document, error) {
	var plants []model.Plant
	if err := s.db.Find(&plants).Error; err != nil {
		return nil, err
	}

	docs := make([]search.Document, len(plants))
	for i, p := range plants {
		docs[i] = search.Document{
			Kind:  "plant",
			ID:    p.ID,
			Title: p.Name,
			Terms: []string{p.Species},
		}
	}
	return docs, nil
}
