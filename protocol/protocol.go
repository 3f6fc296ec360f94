package protocol

import (
	"encoding/json"
)

const Version = 1

const (
	MsgStart   = "start"
	MsgDrop    = "drop"
	MsgWelcome = "welcome"
	MsgState   = "state"
	MsgError   = "error"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p,omitempty"` // raw payload bytes
}
