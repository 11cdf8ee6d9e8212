package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/greenpatch/greenpatch-backend/garden"
	"github.com/greenpatch/greenpatch-backend/garden/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, garden.Migrate(db))
	return db
}

func newTestScheduler(t *testing.T) (*Scheduler, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	settings := &garden.Settings{Timezone: "UTC", OverdueThresholdDays: 14}
	return NewScheduler(db, settings), db
}

func seedGarden(t *testing.T, db *gorm.DB) *model.Garden {
	t.Helper()
	g := &model.Garden{Name: "plot", Width: 5, Height: 5}
	require.NoError(t, db.Create(g).Error)
	return g
}

func seedPlant(t *testing.T, db *gorm.DB, name string) *model.Plant {
	t.Helper()
	p := &model.Plant{Name: name, Species: name}
	require.NoError(t, db.Create(p).Error)
	return p
}

func pendingInstance(t *testing.T, db *gorm.DB, notificationID uint64) *model.NotificationInstance {
	t.Helper()
	var inst model.NotificationInstance
	err := db.Where("notification_id = ? AND status = ?", notificationID, model.StatusPending).
		First(&inst).Error
	require.NoError(t, err)
	return &inst
}

func TestCreateValidation(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)

	cases := []struct {
		name  string
		in    model.NotificationInput
		field string
	}{
		{
			name:  "subtype on non-other type",
			in:    model.NotificationInput{Name: "n", Type: model.NotificationWater, Subtype: "custom", IntervalDays: 7},
			field: "subtype",
		},
		{
			name:  "other without subtype",
			in:    model.NotificationInput{Name: "n", Type: model.NotificationOther, IntervalDays: 7},
			field: "subtype",
		},
		{
			name:  "non-positive interval",
			in:    model.NotificationInput{Name: "n", Type: model.NotificationWater, IntervalDays: 0},
			field: "intervalDays",
		},
		{
			name:  "unknown type",
			in:    model.NotificationInput{Name: "n", Type: "serenade", IntervalDays: 7},
			field: "type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Create(g.ID, tc.in)
			var validation *model.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tc.field, validation.Field)
		})
	}

	_, err := s.Create(g.ID, model.NotificationInput{Name: "water", Type: model.NotificationWater, IntervalDays: 7})
	assert.NoError(t, err)

	_, err = s.Create(g.ID, model.NotificationInput{Name: "odd", Type: model.NotificationOther, Subtype: "repot", IntervalDays: 30})
	assert.NoError(t, err)
}

func TestCreateSeedsPendingInstance(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.Create(g.ID, model.NotificationInput{Name: "water", Type: model.NotificationWater, IntervalDays: 7})
	require.NoError(t, err)

	inst := pendingInstance(t, db, n.ID)
	require.NotNil(t, inst.NextDue)
	assert.True(t, inst.NextDue.Equal(now.AddDate(0, 0, 7)))
}

func TestDuplicateTypePerPlantRejected(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)
	plant := seedPlant(t, db, "tomato")

	_, err := s.Create(g.ID, model.NotificationInput{
		Name: "water tomato", Type: model.NotificationWater, IntervalDays: 3,
		Plants: []model.NotificationPlantInput{{PlantID: plant.ID}},
	})
	require.NoError(t, err)

	_, err = s.Create(g.ID, model.NotificationInput{
		Name: "water tomato again", Type: model.NotificationWater, IntervalDays: 5,
		Plants: []model.NotificationPlantInput{{PlantID: plant.ID}},
	})
	var validation *model.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "plants", validation.Field)

	// same plant, different type is fine
	_, err = s.Create(g.ID, model.NotificationInput{
		Name: "prune tomato", Type: model.NotificationPrune, IntervalDays: 30,
		Plants: []model.NotificationPlantInput{{PlantID: plant.ID}},
	})
	assert.NoError(t, err)
}

func TestCompleteAdvancesAndRejectsSecondCall(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.Create(g.ID, model.NotificationInput{Name: "water", Type: model.NotificationWater, IntervalDays: 7})
	require.NoError(t, err)
	seed := pendingInstance(t, db, n.ID)

	done, err := s.Complete(seed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(now))
	require.NotNil(t, done.LastCompleted)
	require.NotNil(t, done.NextDue)
	assert.True(t, done.NextDue.Equal(now.AddDate(0, 0, 7)))

	// completion reuses the row; no sibling by default
	var count int64
	db.Model(&model.NotificationInstance{}).Where("notification_id = ?", n.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	_, err = s.Complete(seed.ID)
	var transition *model.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, model.StatusCompleted, transition.From)
}

func TestSkip(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.Create(g.ID, model.NotificationInput{Name: "fertilize", Type: model.NotificationFertilize, IntervalDays: 14})
	require.NoError(t, err)
	seed := pendingInstance(t, db, n.ID)

	skipped, err := s.Skip(seed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSkipped, skipped.Status)
	assert.Nil(t, skipped.CompletedAt)
	assert.Nil(t, skipped.LastCompleted)
	require.NotNil(t, skipped.NextDue)
	assert.True(t, skipped.NextDue.Equal(now.AddDate(0, 0, 14)))

	_, err = s.Skip(seed.ID)
	var transition *model.InvalidTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestSpawnOnCompleteCreatesSibling(t *testing.T) {
	s, db := newTestScheduler(t)
	s.settings.SpawnOnComplete = true
	g := seedGarden(t, db)

	n, err := s.Create(g.ID, model.NotificationInput{Name: "water", Type: model.NotificationWater, IntervalDays: 7})
	require.NoError(t, err)
	seed := pendingInstance(t, db, n.ID)

	done, err := s.Complete(seed.ID)
	require.NoError(t, err)

	var instances []model.NotificationInstance
	require.NoError(t, db.Where("notification_id = ?", n.ID).Order("id").Find(&instances).Error)
	require.Len(t, instances, 2)
	assert.Equal(t, model.StatusCompleted, instances[0].Status)
	assert.Equal(t, model.StatusPending, instances[1].Status)
	assert.True(t, instances[1].NextDue.Equal(*done.NextDue))
}

func TestAutoProcessOverdue(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.Create(g.ID, model.NotificationInput{Name: "water", Type: model.NotificationWater, IntervalDays: 7})
	require.NoError(t, err)

	// push the seed instance 20 days into the past
	seed := pendingInstance(t, db, n.ID)
	past := now.AddDate(0, 0, -20)
	require.NoError(t, db.Model(seed).Update("next_due", past).Error)

	processed, threshold, err := s.AutoProcessOverdue(14)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 14, threshold)

	var original model.NotificationInstance
	require.NoError(t, db.First(&original, seed.ID).Error)
	assert.Equal(t, model.StatusMissed, original.Status)
	require.NotNil(t, original.NextDue)
	assert.True(t, original.NextDue.Equal(now.AddDate(0, 0, 7)))

	var siblings []model.NotificationInstance
	require.NoError(t, db.Where("notification_id = ? AND status = ?", n.ID, model.StatusPending).
		Find(&siblings).Error)
	require.Len(t, siblings, 1, "exactly one pending sibling must be spawned")
	assert.True(t, siblings[0].NextDue.Equal(*original.NextDue))
}

func TestAutoProcessOverdueLeavesRecentPending(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.Create(g.ID, model.NotificationInput{Name: "water", Type: model.NotificationWater, IntervalDays: 7})
	require.NoError(t, err)

	seed := pendingInstance(t, db, n.ID)
	require.NoError(t, db.Model(seed).Update("next_due", now.AddDate(0, 0, -5)).Error)

	processed, _, err := s.AutoProcessOverdue(14)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)

	refreshed := pendingInstance(t, db, n.ID)
	assert.Equal(t, seed.ID, refreshed.ID)
}

func TestIsOverdue(t *testing.T) {
	s, _ := newTestScheduler(t)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, s.IsOverdue(&model.NotificationInstance{NextDue: &past}))
	assert.False(t, s.IsOverdue(&model.NotificationInstance{NextDue: &future}))
	assert.False(t, s.IsOverdue(&model.NotificationInstance{NextDue: nil}))
}

func TestEffectiveIntervalCustomOverride(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)
	tomato := seedPlant(t, db, "tomato")
	basil := seedPlant(t, db, "basil")

	short := 3
	long := 10
	n, err := s.Create(g.ID, model.NotificationInput{
		Name: "water", Type: model.NotificationWater, IntervalDays: 7,
		Plants: []model.NotificationPlantInput{
			{PlantID: tomato.ID, CustomIntervalDays: &long},
			{PlantID: basil.ID, CustomIntervalDays: &short},
		},
	})
	require.NoError(t, err)

	var stored model.Notification
	require.NoError(t, db.Preload("Plants").First(&stored, n.ID).Error)

	assert.Equal(t, 7, s.effectiveInterval(&stored), "overrides ignored by default")

	s.settings.UseCustomIntervalPerPlant = true
	assert.Equal(t, 3, s.effectiveInterval(&stored), "smallest override wins when enabled")
}

func TestDeleteCascadesInstances(t *testing.T) {
	s, db := newTestScheduler(t)
	g := seedGarden(t, db)

	n, err := s.Create(g.ID, model.NotificationInput{Name: "water", Type: model.NotificationWater, IntervalDays: 7})
	require.NoError(t, err)

	require.NoError(t, s.Delete(n.ID))

	var count int64
	db.Model(&model.NotificationInstance{}).Where("notification_id = ?", n.ID).Count(&count)
	assert.EqualValues(t, 0, count)

	var notFound *model.NotFoundError
	assert.ErrorAs(t, s.Delete(n.ID), &notFound)
}
