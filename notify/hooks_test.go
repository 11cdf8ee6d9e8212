package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/greenpatch/greenpatch-backend/events"
	"github.com/greenpatch/greenpatch-backend/garden"
	"github.com/greenpatch/greenpatch-backend/garden/model"
	"github.com/greenpatch/greenpatch-backend/plantdata"
)

// newHookedFixture wires a grid, a scheduler and the hooks the composition
// root registers, against one database.
func newHookedFixture(t *testing.T) (*garden.Grid, *Scheduler, *plantdata.Fake, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	dispatcher := events.NewDispatcher()
	settings := &garden.Settings{Timezone: "UTC", OverdueThresholdDays: 14}

	grid := garden.NewGrid(db, dispatcher)
	scheduler := NewScheduler(db, settings)
	fake := plantdata.NewFake()
	scheduler.RegisterHooks(dispatcher, fake)

	return grid, scheduler, fake, db
}

func TestSeedingOnPlacement(t *testing.T) {
	grid, s, _, db := newHookedFixture(t)
	g := seedGarden(t, db)

	tomato := &model.Plant{Name: "tomato", Species: "solanum", WaterDays: 3, PruneDays: 30}
	require.NoError(t, db.Create(tomato).Error)

	_, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: tomato.ID})
	require.NoError(t, err)

	notifications, err := s.Notifications(g.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 2, "one reminder per positive care frequency")

	byType := map[model.NotificationType]model.Notification{}
	for _, n := range notifications {
		byType[n.Type] = n
	}

	water, ok := byType[model.NotificationWater]
	require.True(t, ok)
	assert.Equal(t, 3, water.IntervalDays)
	require.Len(t, water.Instances, 1)
	assert.Equal(t, model.StatusPending, water.Instances[0].Status)

	prune, ok := byType[model.NotificationPrune]
	require.True(t, ok)
	assert.Equal(t, 30, prune.IntervalDays)

	_, hasFertilize := byType[model.NotificationFertilize]
	assert.False(t, hasFertilize, "zero frequency must not seed a reminder")
}

func TestSeedingLooksUpProviderDefaults(t *testing.T) {
	grid, s, fake, db := newHookedFixture(t)
	g := seedGarden(t, db)

	fern := &model.Plant{Name: "fern", Species: "nephrolepis"}
	require.NoError(t, db.Create(fern).Error)

	fake.SetDefaults("nephrolepis", plantdata.CareDefaults{WaterDays: 2, DaysToHarvest: 0})

	_, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: fern.ID})
	require.NoError(t, err)

	var stored model.Plant
	require.NoError(t, db.First(&stored, fern.ID).Error)
	assert.Equal(t, 2, stored.WaterDays, "provider defaults must be persisted on the plant")

	notifications, err := s.Notifications(g.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, model.NotificationWater, notifications[0].Type)
	assert.Equal(t, 2, notifications[0].IntervalDays)
}

func TestSeedingSkipsExistingTypes(t *testing.T) {
	grid, s, _, db := newHookedFixture(t)
	g := seedGarden(t, db)

	mint := &model.Plant{Name: "mint", Species: "mentha", WaterDays: 4}
	require.NoError(t, db.Create(mint).Error)

	_, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: mint.ID})
	require.NoError(t, err)
	_, err = grid.PlacePlant(g.ID, model.PlacePlantInput{X: 1, Y: 0, PlantID: mint.ID})
	require.NoError(t, err)

	notifications, err := s.Notifications(g.ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 1, "second placement must not duplicate the water reminder")
}

func TestCareEventCompletesMatchingInstances(t *testing.T) {
	grid, s, _, db := newHookedFixture(t)
	g := seedGarden(t, db)

	basil := &model.Plant{Name: "basil", Species: "ocimum", WaterDays: 3}
	require.NoError(t, db.Create(basil).Error)

	placed, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: basil.ID})
	require.NoError(t, err)

	notifications, err := s.Notifications(g.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	instanceID := notifications[0].Instances[0].ID

	_, err = grid.RecordCare(placed.ID, garden.CareWater)
	require.NoError(t, err)

	var inst model.NotificationInstance
	require.NoError(t, db.First(&inst, instanceID).Error)
	assert.Equal(t, model.StatusCompleted, inst.Status)
	assert.NotNil(t, inst.CompletedAt)
}

func TestHealthAlertCreatedOnce(t *testing.T) {
	grid, _, _, db := newHookedFixture(t)
	g := seedGarden(t, db)
	rose := seedPlant(t, db, "rose")

	placed, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: rose.ID})
	require.NoError(t, err)

	_, err = grid.SetHealth(placed.ID, model.HealthPoor)
	require.NoError(t, err)

	// bounce out and back into poor; the alert must not duplicate
	_, err = grid.SetHealth(placed.ID, model.HealthFair)
	require.NoError(t, err)
	_, err = grid.SetHealth(placed.ID, model.HealthPoor)
	require.NoError(t, err)

	var alerts []model.Notification
	require.NoError(t, db.Where("garden_id = ? AND type = ? AND subtype = ?",
		g.ID, model.NotificationOther, SubtypeHealthAlert).Find(&alerts).Error)
	assert.Len(t, alerts, 1)
}

func TestHealthImprovementNotification(t *testing.T) {
	grid, _, _, db := newHookedFixture(t)
	g := seedGarden(t, db)
	rose := seedPlant(t, db, "rose")

	placed, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: rose.ID})
	require.NoError(t, err)

	_, err = grid.SetHealth(placed.ID, model.HealthDying)
	require.NoError(t, err)
	_, err = grid.SetHealth(placed.ID, model.HealthExcellent)
	require.NoError(t, err)

	var improvements []model.Notification
	require.NoError(t, db.Where("garden_id = ? AND subtype = ?",
		g.ID, SubtypeHealthImprovement).Find(&improvements).Error)
	assert.Len(t, improvements, 1)
}

func TestCleanupDeletesSolePlantNotification(t *testing.T) {
	grid, s, _, db := newHookedFixture(t)
	g := seedGarden(t, db)

	basil := &model.Plant{Name: "basil", Species: "ocimum", WaterDays: 3}
	require.NoError(t, db.Create(basil).Error)

	_, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: basil.ID})
	require.NoError(t, err)

	notifications, err := s.Notifications(g.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	doomed := notifications[0].ID

	removed, err := grid.RemovePlant(g.ID, 0, 0)
	require.NoError(t, err)
	require.True(t, removed)

	var count int64
	db.Model(&model.Notification{}).Where("id = ?", doomed).Count(&count)
	assert.EqualValues(t, 0, count, "sole-plant notification must be deleted")

	db.Model(&model.NotificationInstance{}).Where("notification_id = ?", doomed).Count(&count)
	assert.EqualValues(t, 0, count, "instances must cascade with the notification")
}

func TestBulkMovePreservesCareReminders(t *testing.T) {
	grid, s, _, db := newHookedFixture(t)
	g := seedGarden(t, db)

	basil := &model.Plant{Name: "basil", Species: "ocimum", WaterDays: 3}
	require.NoError(t, db.Create(basil).Error)

	_, err := grid.PlacePlant(g.ID, model.PlacePlantInput{X: 1, Y: 1, PlantID: basil.ID})
	require.NoError(t, err)

	notifications, err := s.Notifications(g.ID)
	require.NoError(t, err)
	require.Len(t, notifications, 1)

	// relocate basil to a cell the scan visits before its old one
	cells := make([][]*model.GridCellInput, g.Height)
	for y := range cells {
		cells[y] = make([]*model.GridCellInput, g.Width)
	}
	cells[0][0] = &model.GridCellInput{PlantID: &basil.ID}
	require.NoError(t, grid.UpdateGridBulk(g.ID, model.BulkGridInput{Cells: cells}))

	var placements []model.GridPlacement
	require.NoError(t, db.Where("garden_id = ?", g.ID).Find(&placements).Error)
	require.Len(t, placements, 1)

	notifications, err = s.Notifications(g.ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 1, "moving a plant must keep its reminders")
}

func TestDeleteGardenRemovesNotifications(t *testing.T) {
	grid, s, _, db := newHookedFixture(t)
	g := seedGarden(t, db)
	tomato := seedPlant(t, db, "tomato")

	_, err := s.Create(g.ID, model.NotificationInput{
		Name: "water", Type: model.NotificationWater, IntervalDays: 7,
		Plants: []model.NotificationPlantInput{{PlantID: tomato.ID}},
	})
	require.NoError(t, err)

	active, err := s.ActiveInstances()
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, grid.DeleteGarden(g.ID))

	active, err = s.ActiveInstances()
	require.NoError(t, err)
	assert.Empty(t, active, "reminders of a deleted garden must not surface")

	var count int64
	db.Model(&model.Notification{}).Where("garden_id = ?", g.ID).Count(&count)
	assert.EqualValues(t, 0, count)
	db.Model(&model.NotificationInstance{}).Count(&count)
	assert.EqualValues(t, 0, count, "instances must cascade with their notifications")
}

func TestCleanupDetachesSharedNotification(t *testing.T) {
	grid, s, _, db := newHookedFixture(t)
	g := seedGarden(t, db)
	tomato := seedPlant(t, db, "tomato")
	basil := seedPlant(t, db, "basil")

	shared, err := s.Create(g.ID, model.NotificationInput{
		Name: "water bed", Type: model.NotificationWater, IntervalDays: 5,
		Plants: []model.NotificationPlantInput{
			{PlantID: tomato.ID},
			{PlantID: basil.ID},
		},
	})
	require.NoError(t, err)

	_, err = grid.PlacePlant(g.ID, model.PlacePlantInput{X: 0, Y: 0, PlantID: tomato.ID})
	require.NoError(t, err)

	removed, err := grid.RemovePlant(g.ID, 0, 0)
	require.NoError(t, err)
	require.True(t, removed)

	var count int64
	db.Model(&model.Notification{}).Where("id = ?", shared.ID).Count(&count)
	assert.EqualValues(t, 1, count, "shared notification must survive")

	var associations []model.NotificationPlant
	require.NoError(t, db.Where("notification_id = ?", shared.ID).Find(&associations).Error)
	require.Len(t, associations, 1)
	assert.Equal(t, basil.ID, *associations[0].PlantID)
}
