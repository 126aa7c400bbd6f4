package gateway

import "fmt"

type State int32

const (
	Idle State = iota
	Connecting
	AwaitingHello
	Identified
	Dispatching
	Closing
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case AwaitingHello:
		return "awaiting_hello"
	case Identified:
		return "identified"
	case Dispatching:
		return "dispatching"
	case Closing:
		return "closing"
	case Reconnecting:
		return "reconnecting"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Имена событий и опкодов протокола.
const (
	EventHello         = "hello"
	EventReady         = "ready"
	EventPong          = "pong"
	EventMessageCreate = "message_create"
	EventTypingStart   = "typing_start"
	EventTypingStop    = "typing_stop"

	OpIdentify       = "identify"
	OpPing           = "ping"
	OpUpdatePresence = "update_presence"
)

// Коды закрытия, которые использует сам клиент.
const (
	CloseNormal         = 1000
	CloseProtocolError  = 1002
	CloseAbnormal       = 1006
	CloseHeartbeatLost  = 4000
	CloseAuthentication = 4004
)

// Terminal — после такого кода реконнекта нет.
func Terminal(code int) bool {
	return code <= CloseNormal || code == CloseAuthentication
}
