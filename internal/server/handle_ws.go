package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/store"
)

// handleWS pushes room events over a WebSocket. Seated team players also
// receive their team's private channel (chat and answer suggestions).
func handleWS(logger *slog.Logger, rooms *battle.Rooms, events *battle.Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		if _, err := rooms.GetRoom(r.Context(), code); err != nil {
			writeDomainError(w, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "room", code, "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
		defer cancel()

		roomCh, cancelRoom, err := events.SubscribeRoom(ctx, code)
		if err != nil {
			logger.Error("subscribing to room events", "room", code, "error", err)
			return
		}
		defer cancelRoom()

		var teamCh <-chan store.Message
		if player, err := rooms.GetPlayer(ctx, code, identityFrom(r).ID); err == nil && player.Team != "" {
			ch, cancelTeam, err := events.SubscribeTeamChat(ctx, code, player.Team)
			if err != nil {
				logger.Error("subscribing to team chat", "room", code, "error", err)
				return
			}
			defer cancelTeam()
			teamCh = ch
		}

		// Reads are drained only to detect the peer going away.
		go func() {
			for {
				if _, _, err := conn.Read(ctx); err != nil {
					cancel()
					return
				}
			}
		}()

		write := func(msg store.Message) bool {
			if err := conn.Write(ctx, websocket.MessageText, []byte(msg.Payload)); err != nil {
				logger.Debug("websocket write failed", "room", code, "error", err)
				return false
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-roomCh:
				if !ok || !write(msg) {
					return
				}
			case msg, ok := <-teamCh:
				if !ok || !write(msg) {
					return
				}
			}
		}
	}
}
