package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stealthdragons/dragon-server/internal/game"
	"github.com/stealthdragons/dragon-server/internal/room"
)

type sessionStatus struct {
	ID             string               `json:"id"`
	State          string               `json:"state"`
	Turn           int                  `json:"turn"`
	ActivePlayerID string               `json:"active_player_id,omitempty"`
	Players        []game.PlayerSummary `json:"players"`
	Outcomes       []game.Outcome       `json:"outcomes,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

type statusResponse struct {
	Version     string          `json:"version"`
	Room        room.Snapshot   `json:"room"`
	Connections int             `json:"connections"`
	Sessions    []sessionStatus `json:"sessions"`
}

// NewRouter builds the status API. wsPath, when non-empty, also mounts the
// hub so one listener can serve both.
func NewRouter(hub *Hub, rm *room.Room, sessions *game.Manager, version, wsPath string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http",
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
		)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	r.GET("/version", func(c *gin.Context) {
		c.String(http.StatusOK, version)
	})

	r.GET("/status", func(c *gin.Context) {
		infos := sessions.List()
		resp := statusResponse{
			Version:     version,
			Room:        rm.Snapshot(),
			Connections: hub.ConnectionCount(),
			Sessions:    make([]sessionStatus, 0, len(infos)),
		}
		for _, info := range infos {
			resp.Sessions = append(resp.Sessions, sessionStatus{
				ID:             info.ID,
				State:          info.State.String(),
				Turn:           info.Turn,
				ActivePlayerID: info.ActivePlayerID,
				Players:        info.Players,
				Outcomes:       info.Outcomes,
				CreatedAt:      info.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, resp)
	})

	if wsPath != "" {
		r.GET(wsPath, gin.WrapH(hub))
	}
	return r
}
