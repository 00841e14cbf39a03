package handlers

import (
	"log"
	"net/http"
	"slices"

	"athemaria/internal/websocket"

	ws "github.com/gorilla/websocket"
)

func (s *Server) upgrader() *ws.Upgrader {
	return &ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			origins := s.Config.AllowedOrigins
			return slices.Contains(origins, "*") || slices.Contains(origins, origin)
		},
	}
}

// HandleWebSocket handles WebSocket connection requests. Browsers cannot set
// headers on the upgrade, so the JWT comes from the token query parameter.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1. Authenticate using JWT from query parameter
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			log.Println("WebSocket connection failed: Missing token")
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		claims, err := s.Tokens.ValidateToken(tokenString)
		if err != nil {
			log.Printf("WebSocket connection failed: Invalid token: %v", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		userID := claims.UserID

		// 2. Upgrade connection
		conn, err := s.upgrader().Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for User %s: %v", userID, err)
			return
		}

		// 3. Register the client and start its pumps
		client := websocket.NewClient(s.Hub, userID, conn)
		select {
		case s.Hub.Register <- client:
		case <-s.Hub.Done():
			conn.Close()
			return
		}
		log.Printf("WebSocket client registered for User %s", userID)

		go client.WritePump()
		go client.ReadPump()
	}
}
