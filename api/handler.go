// Package api exposes the grid and scheduler over REST.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greenpatch/greenpatch-backend/forum"
	"github.com/greenpatch/greenpatch-backend/garden"
	"github.com/greenpatch/greenpatch-backend/garden/model"
	"github.com/greenpatch/greenpatch-backend/notify"
	"github.com/greenpatch/greenpatch-backend/plantdata"
	"github.com/greenpatch/greenpatch-backend/search"
)

type Handler struct {
	controller garden.Controller
	scheduler  *notify.Scheduler
	forum      *forum.Forum
	registry   *search.Registry
	provider   plantdata.Provider
}

func NewHandler(c garden.Controller, s *notify.Scheduler, f *forum.Forum, registry *search.Registry, provider plantdata.Provider) *Handler {
	return &Handler{
		controller: c,
		scheduler:  s,
		forum:      f,
		registry:   registry,
		provider:   provider,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/plants", h.listPlants)
	api.POST("/plants", h.createPlant)

	api.GET("/gardens", h.listGardens)
	api.POST("/gardens", h.createGarden)
	api.GET("/gardens/:id", h.getGarden)
	api.PUT("/gardens/:id", h.updateGarden)
	api.DELETE("/gardens/:id", h.deleteGarden)
	api.PUT("/gardens/:id/resize", h.resizeGarden)
	api.POST("/gardens/:id/prune", h.pruneGarden)

	api.GET("/gardens/:id/grid", h.renderGrid)
	api.PUT("/gardens/:id/grid", h.updateGridBulk)
	api.POST("/gardens/:id/placements", h.placePlant)
	api.DELETE("/gardens/:id/placements", h.removePlant)
	api.POST("/gardens/:id/placements/move", h.movePlant)

	api.PATCH("/placements/:id/care", h.recordCare)
	api.PATCH("/placements/:id/health", h.setHealth)
	api.PATCH("/placements/:id/stage", h.setGrowthStage)

	api.GET("/gardens/:id/notifications", h.listNotifications)
	api.POST("/gardens/:id/notifications", h.createNotification)
	api.DELETE("/notifications/:id", h.deleteNotification)

	api.GET("/instances", h.activeInstances)
	api.POST("/instances/:id/complete", h.completeInstance)
	api.POST("/instances/:id/skip", h.skipInstance)
	api.POST("/overdue/process", h.processOverdue)
	api.GET("/dashboard", h.dashboard)

	api.GET("/search", h.search)

	api.GET("/forum/threads", h.listThreads)
	api.POST("/forum/threads", h.createThread)
	api.GET("/forum/threads/:id", h.getThread)
	api.DELETE("/forum/threads/:id", h.deleteThread)
	api.POST("/forum/threads/:id/replies", h.createReply)

	r.GET("/ws/gardens/:id", h.gardenSocket)
}

// writeError maps the core's error kinds to HTTP statuses: 404 for missing
// resources, 400 for validation, bounds, occupancy and transition errors.
func writeError(c *gin.Context, err error) {
	var notFound *model.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var outOfBounds *model.OutOfBoundsError
	if errors.As(err, &outOfBounds) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"x":     outOfBounds.X,
			"y":     outOfBounds.Y,
		})
		return
	}

	var occupied *model.CellOccupiedError
	if errors.As(err, &occupied) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"x":     occupied.X,
			"y":     occupied.Y,
		})
		return
	}

	var validation *model.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"field": validation.Field,
		})
		return
	}

	var transition *model.InvalidTransitionError
	if errors.As(err, &transition) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Println("internal error:", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) listPlants(c *gin.Context) {
	var plants []model.Plant
	if err := h.controller.DB().Order("id").Find(&plants).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, plants)
}

func (h *Handler) createPlant(c *gin.Context) {
	var in model.PlantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plant := model.Plant{
		Name:          in.Name,
		Species:       in.Species,
		WaterDays:     in.WaterDays,
		FertilizeDays: in.FertilizeDays,
		PruneDays:     in.PruneDays,
		DaysToHarvest: in.DaysToHarvest,
	}

	noDefaults := plant.WaterDays == 0 && plant.FertilizeDays == 0 && plant.PruneDays == 0
	if noDefaults && plant.Species != "" && h.provider != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		defaults, err := h.provider.CareDefaults(ctx, plant.Species)
		if err != nil {
			log.Println("plant api lookup failed:", err)
		} else {
			plant.WaterDays = defaults.WaterDays
			plant.FertilizeDays = defaults.FertilizeDays
			plant.PruneDays = defaults.PruneDays
			if plant.DaysToHarvest == 0 {
				plant.DaysToHarvest = defaults.DaysToHarvest
			}
		}
	}

	if err := h.controller.DB().Create(&plant).Error; err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plant)
}

func (h *Handler) listGardens(c *gin.Context) {
	var ownerID uint64
	if raw := c.Query("ownerID"); raw != "" {
		ownerID, _ = strconv.ParseUint(raw, 10, 64)
	}

	gardens, err := h.controller.Grid().Gardens(ownerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gardens)
}

func (h *Handler) createGarden(c *gin.Context) {
	var in model.GardenInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.controller.Grid().CreateGarden(in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h *Handler) getGarden(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	g, err := h.controller.Grid().Garden(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) updateGarden(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in struct {
		Name   string `json:"name"`
		Public bool   `json:"public"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	g, err := h.controller.Grid().UpdateGarden(id, in.Name, in.Public)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) deleteGarden(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.controller.Grid().DeleteGarden(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) resizeGarden(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in model.ResizeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stranded, err := h.controller.Grid().Resize(id, in)
	if err != nil {
		writeError(c, err)
		return
	}

	pruned := 0
	if stranded > 0 && h.controller.Settings().AutoEvictOnResize {
		pruned, err = h.controller.Grid().PruneOutOfBounds(id)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"stranded": stranded, "pruned": pruned})
}

func (h *Handler) pruneGarden(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	pruned, err := h.controller.Grid().PruneOutOfBounds(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pruned": pruned})
}

func (h *Handler) renderGrid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	grid, err := h.controller.Grid().RenderGrid(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grid": grid})
}

func (h *Handler) updateGridBulk(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in model.BulkGridInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.Grid().UpdateGridBulk(id, in); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": id})
}

func (h *Handler) placePlant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in model.PlacePlantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := h.controller.Grid().PlacePlant(id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, placement)
}

func (h *Handler) removePlant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	x, errX := strconv.Atoi(c.Query("x"))
	y, errY := strconv.Atoi(c.Query("y"))
	if errX != nil || errY != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "x and y query parameters are required"})
		return
	}

	removed, err := h.controller.Grid().RemovePlant(id, x, y)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (h *Handler) movePlant(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in model.MovePlantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := h.controller.Grid().MovePlant(id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, placement)
}

func (h *Handler) recordCare(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in model.CareInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := h.controller.Grid().RecordCare(id, in.Care)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, placement)
}

func (h *Handler) setHealth(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in model.HealthInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := h.controller.Grid().SetHealth(id, in.Health)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, placement)
}

func (h *Handler) setGrowthStage(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in struct {
		Stage string `json:"stage"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := h.controller.Grid().SetGrowthStage(id, in.Stage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, placement)
}

func (h *Handler) listNotifications(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	notifications, err := h.scheduler.Notifications(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *Handler) createNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in model.NotificationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification, err := h.scheduler.Create(id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notification)
}

func (h *Handler) deleteNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.scheduler.Delete(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) activeInstances(c *gin.Context) {
	instances, err := h.scheduler.ActiveInstances()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instances)
}

func (h *Handler) completeInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	instance, err := h.scheduler.Complete(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instance)
}

func (h *Handler) skipInstance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	instance, err := h.scheduler.Skip(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, instance)
}

// processOverdue is the overdue sweep endpoint, meant to be hit by an
// external timer.
func (h *Handler) processOverdue(c *gin.Context) {
	threshold := 0
	if raw := c.Query("thresholdDays"); raw != "" {
		threshold, _ = strconv.Atoi(raw)
	}

	processed, used, err := h.scheduler.AutoProcessOverdue(threshold)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed, "thresholdDays": used})
}

func (h *Handler) dashboard(c *gin.Context) {
	d, err := h.scheduler.Dashboard()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) search(c *gin.Context) {
	docs, err := h.registry.Search(c.Query("q"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": docs})
}

func (h *Handler) listThreads(c *gin.Context) {
	threads, err := h.forum.Threads()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, threads)
}

func (h *Handler) createThread(c *gin.Context) {
	var in forum.ThreadInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thread, err := h.forum.CreateThread(in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

func (h *Handler) getThread(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	thread, err := h.forum.Thread(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *Handler) deleteThread(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.forum.DeleteThread(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) createReply(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var in forum.ReplyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := h.forum.Reply(id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}
