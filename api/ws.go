package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// gardenSocket streams live garden snapshots to a websocket client. The
// subscription is torn down when the client disconnects.
func (h *Handler) gardenSocket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("ws upgrade:", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ch := h.controller.GardenChannel(ctx, id)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case g := <-ch:
			if err := conn.WriteJSON(g); err != nil {
				return
			}
		}
	}
}
