package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

// codeParam declares the {code} path parameter; the reflector rejects
// operations whose path placeholders no request structure defines.
type codeParam struct {
	Code string `path:"code"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Quiz Battle API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Real-time multiplayer quiz battle engine. Identity is supplied via X-Player-ID and X-Player-Name headers.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/rooms
	createRoom, _ := r.NewOperationContext(http.MethodPost, "/api/rooms")
	createRoom.SetSummary("Create room")
	createRoom.SetDescription("Creates a game room and seats the caller as host.")
	createRoom.AddReqStructure(CreateRoomRequest{})
	createRoom.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createRoom)

	// GET /api/rooms
	listRooms, _ := r.NewOperationContext(http.MethodGet, "/api/rooms")
	listRooms.SetSummary("Browse public rooms")
	listRooms.SetDescription("Lists joinable public rooms with their occupancy.")
	listRooms.AddRespStructure([]battle.PublicRoomInfo{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listRooms)

	// GET /api/rooms/{code}
	getRoom, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}")
	getRoom.AddReqStructure(codeParam{})
	getRoom.SetSummary("Get room state")
	getRoom.SetDescription("Returns the room record and its seated players.")
	getRoom.AddRespStructure(RoomResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRoom)

	// POST /api/rooms/{code}/join
	join, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/join")
	join.AddReqStructure(codeParam{})
	join.SetSummary("Join room")
	join.SetDescription("Seats the caller. Private rooms require the password; rejoining an existing seat is idempotent.")
	join.AddReqStructure(JoinRequest{})
	join.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	join.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(join)

	// POST /api/rooms/{code}/leave
	leave, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/leave")
	leave.AddReqStructure(codeParam{})
	leave.SetSummary("Leave room")
	leave.SetDescription("Removes the caller's seat. The last player leaving deletes the room.")
	leave.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	leave.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(leave)

	// POST /api/rooms/{code}/ready
	ready, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/ready")
	ready.AddReqStructure(codeParam{})
	ready.SetSummary("Set ready state")
	ready.AddReqStructure(ReadyRequest{})
	ready.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(ready)

	// POST /api/rooms/{code}/team
	team, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/team")
	team.AddReqStructure(codeParam{})
	team.SetSummary("Switch team")
	team.SetDescription("Moves the caller to the other team while the room is waiting.")
	team.AddReqStructure(SwitchTeamRequest{})
	team.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	team.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(team)

	// POST /api/rooms/{code}/start
	start, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/start")
	start.AddReqStructure(codeParam{})
	start.SetSummary("Start game")
	start.SetDescription("Loads the question set and opens the first round. Requires at least two players.")
	start.AddRespStructure(StartResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	start.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(start)

	// POST /api/rooms/{code}/answer
	answer, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/answer")
	answer.AddReqStructure(codeParam{})
	answer.SetSummary("Submit answer")
	answer.SetDescription("Grades one submission for the current round. In team mode only captains may submit.")
	answer.AddReqStructure(AnswerRequest{})
	answer.AddRespStructure(battle.SubmitResult{}, openapi.WithHTTPStatus(http.StatusOK))
	answer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	answer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(answer)

	// GET /api/rooms/{code}/results
	results, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/results")
	results.AddReqStructure(codeParam{})
	results.SetSummary("Game results")
	results.SetDescription("Final rankings by score; ties share a rank.")
	results.AddRespStructure(battle.GameResults{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(results)

	// GET /api/rooms/{code}/timer
	timer, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/timer")
	timer.AddReqStructure(codeParam{})
	timer.SetSummary("Round countdown")
	timer.AddRespStructure(battle.TimerInfo{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(timer)

	// GET /api/rooms/{code}/events
	events, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/events")
	events.AddReqStructure(codeParam{})
	events.SetSummary("Recent events")
	events.SetDescription("Bounded replay queue for polling clients, oldest first.")
	events.AddRespStructure([]battle.Event{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(events)

	// GET /api/rooms/{code}/stream
	stream, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/stream")
	stream.AddReqStructure(codeParam{})
	stream.SetSummary("SSE event stream")
	stream.SetDescription("Server-Sent Events stream of live room events.")
	stream.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(stream)

	// GET /ws/rooms/{code}
	ws, _ := r.NewOperationContext(http.MethodGet, "/ws/rooms/{code}")
	ws.AddReqStructure(codeParam{})
	ws.SetSummary("WebSocket event stream")
	ws.SetDescription("Upgrades to a WebSocket pushing live room events, plus the caller's team channel when seated.")
	ws.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(ws)

	// POST /api/rooms/{code}/chat
	chat, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/chat")
	chat.AddReqStructure(codeParam{})
	chat.SetSummary("Team chat")
	chat.SetDescription("Sends a chat message on the caller's team channel.")
	chat.AddReqStructure(ChatRequest{})
	chat.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(chat)

	// POST /api/rooms/{code}/suggest
	suggest, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/suggest")
	suggest.AddReqStructure(codeParam{})
	suggest.SetSummary("Suggest answer")
	suggest.SetDescription("Floats an answer suggestion to the caller's team captain. Team-private, never queued.")
	suggest.AddReqStructure(SuggestRequest{})
	suggest.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(suggest)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
