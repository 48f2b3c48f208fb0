package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// wsView streams every published row-set as a JSON report until the client
// goes away.
func (s *Server) wsView(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	log.Debug().Str("addr", conn.RemoteAddr().String()).Msg("ws client connected")

	updates, cancel := s.backend.Subscribe()
	defer cancel()

	// Clients only send control frames; the reader notices disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			log.Debug().Str("addr", conn.RemoteAddr().String()).Msg("ws client disconnected")
			return
		case <-c.Request.Context().Done():
			return
		case u, open := <-updates:
			if !open {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(report(u)); err != nil {
				log.Debug().Err(err).Msg("ws write failed")
				return
			}
		}
	}
}
