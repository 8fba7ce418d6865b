package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades connections and runs them as Hub clients. The
// optional "entity" query parameter (repeated or comma separated) limits
// which change notices the client receives. An empty originPatterns list
// accepts any origin.
func HandleWebSocket(hub *Hub, originPatterns []string) http.HandlerFunc {
	opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
	if len(originPatterns) == 0 {
		opts.InsecureSkipVerify = true
	}

	return func(w http.ResponseWriter, r *http.Request) {
		entities, err := ParseEntities(r.URL.Query()["entity"])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			hub.logger.Warn("websocket accept", "remote", r.RemoteAddr, "error", err)
			return
		}

		hub.logger.Debug("websocket connected", "remote", r.RemoteAddr, "entities", entities)
		NewClient(hub, conn, entities).Run(r.Context())
	}
}
