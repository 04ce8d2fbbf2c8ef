package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/studio-blockchain/studio-indexer/events"
	"github.com/studio-blockchain/studio-indexer/indexer"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// websocketFeedDepth bounds the per-connection event buffer; events beyond it are dropped for that client.
const websocketFeedDepth = 64

// WebsocketBlocksHandler streams every indexed block to the client as JSON until the connection drops.
func WebsocketBlocksHandler(ix *indexer.Indexer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer connection.Close()

		feed := make(chan events.BlockIndexedEvent, websocketFeedDepth)
		unsubscribe := ix.Events.BlockIndexed.Subscribe(func(event events.BlockIndexedEvent) error {
			select {
			case feed <- event:
			default:
				// Slow client; skip rather than stall ingestion
			}
			return nil
		})
		defer unsubscribe()

		// The read loop notices the peer going away
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := connection.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event := <-feed:
				if err := connection.WriteJSON(event); err != nil {
					return
				}
			case <-closed:
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}
