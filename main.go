package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/greenpatch/greenpatch-backend/api"
	"github.com/greenpatch/greenpatch-backend/forum"
	"github.com/greenpatch/greenpatch-backend/garden"
	"github.com/greenpatch/greenpatch-backend/notify"
	"github.com/greenpatch/greenpatch-backend/plantdata"
	"github.com/greenpatch/greenpatch-backend/search"
)

func main() {
	controller, err := garden.NewController("gardenSettings.yml")
	if err != nil {
		log.Fatalln("init controller:", err)
	}
	settings := controller.Settings()

	var provider plantdata.Provider
	if settings.PlantAPIBaseURL != "" {
		provider = plantdata.NewClient(settings.PlantAPIBaseURL)
	}

	scheduler := notify.NewScheduler(controller.DB(), settings)
	scheduler.RegisterHooks(controller.Events(), provider)

	board, err := forum.New(controller.DB())
	if err != nil {
		log.Fatalln("init forum:", err)
	}

	registry := search.NewRegistry().
		Register("garden", garden.NewGardenSource(controller.DB())).
		Register("plant", garden.NewPlantSource(controller.DB()))

	handler := api.NewHandler(controller, scheduler, board, registry, provider)

	r := gin.Default()
	handler.Register(r)

	log.Println("listening on", settings.Listen)
	if err := r.Run(settings.Listen); err != nil {
		log.Fatalln(err)
	}
}
