package notify

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// ServeWS streams hub events to a WebSocket client as JSON text frames
// until the client disconnects or the request context ends.
func (h *Hub) ServeWS(opts *websocket.AcceptOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Error().Err(err).Msg("websocket accept")
			return
		}
		defer conn.CloseNow()

		events, cancel := h.Subscribe(DefaultBuffer)
		defer cancel()

		// The client never sends; CloseRead handles pings and close frames
		ctx := conn.CloseRead(r.Context())

		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
				return
			case e, ok := <-events:
				if !ok {
					_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
					return
				}
				payload, err := json.Marshal(e)
				if err != nil {
					log.Error().Err(err).Msg("marshal event")
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
					log.Debug().Err(err).Msg("websocket write")
					return
				}
			}
		}
	}
}
