package store

import "fmt"

// Key namespace for the quiz-battle engine. Everything scoped to a room hangs
// off battle:room:<code> so the whole room can be expired or deleted as a
// unit; the two global indexes and the timer index are the only shared keys.

const (
	KeyActiveRooms = "battle:rooms:active" // set of codes in use
	KeyPublicRooms = "battle:rooms:public" // set of public waiting rooms
	KeyTimerIndex  = "battle:timers"       // zset code -> endsAt unix-ms
)

func RoomKey(code string) string { return "battle:room:" + code }

func RoomPlayersKey(code string) string { return RoomKey(code) + ":players" }

func PlayerKey(code, playerID string) string { return RoomKey(code) + ":player:" + playerID }

func QuestionKey(code string, index int) string {
	return fmt.Sprintf("%s:question:%d", RoomKey(code), index)
}

func QuestionStateKey(code string, index int) string {
	return fmt.Sprintf("%s:qstate:%d", RoomKey(code), index)
}

func AnsweredKey(code string, index int) string {
	return fmt.Sprintf("%s:answered:%d", RoomKey(code), index)
}

func TimerKey(code string) string { return RoomKey(code) + ":timer" }

func EventQueueKey(code string) string { return RoomKey(code) + ":events" }

func EventChannel(code string) string { return "battle:events:" + code }

func ChatChannel(code, team string) string { return "battle:chat:" + code + ":" + team }
