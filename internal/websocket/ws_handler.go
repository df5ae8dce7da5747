package websocket

import (
	"log"
	"net/http"
	"strings"

	"koboland/internal/util"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development, restrict in production
		return true
	},
}

// ServeWS upgrades a viewer connection for live counter updates. Counters
// are public, so a token is optional; a token that is present must be valid.
// After connecting, clients narrow the fanout with subscribe messages:
//
//	{"type": "subscribe", "target_type": "topic", "target_id": "..."}
//
// A client that never subscribes receives updates for every target.
func ServeWS(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID := ""
		if token := bearerToken(r); token != "" {
			claims, err := util.ValidateToken(token, jwtSecret)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			viewerID = claims.UserID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		client := NewClient(hub, conn, viewerID)
		hub.register <- client
		go client.Start()
	}
}

// bearerToken pulls the optional token from the query string or the
// Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}
