package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxroom/internal/app"
)

func handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListRooms is the REST twin of the get-available-rooms socket event,
// for lobby pages that poll before the socket is up.
func handleListRooms(engine *app.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms, err := engine.ListRooms(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list rooms"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	}
}
