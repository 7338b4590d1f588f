package protocol

import "encoding/json"

// Inbound frame types.
const (
	TypeRange  = "range"
	TypeUpdate = "update"
	TypeClose  = "close"
)

// Outbound meta types.
const (
	TypeUserColor    = "userColor"
	TypeUserLogin    = "userLogin"
	TypeUserLogout   = "userLogout"
	TypeFlagCaptured = "flagCaptured"
	TypeError        = "error"
)

// Frame is one inbound client request. ID is opaque and echoed back in
// the reply's meta so clients can correlate.
type Frame struct {
	ID   json.RawMessage `json:"id"`
	Type string          `json:"type"`
	Args json.RawMessage `json:"args"`
}

func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(b, &f)
	return f, err
}

// Meta identifies an outbound message: the request id it answers (null
// for server-initiated events) and the event kind.
type Meta struct {
	ID   json.RawMessage `json:"id"`
	Type string          `json:"type"`
}

// Envelope is the single outbound shape: every reply and broadcast is
// {data, meta}.
type Envelope struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

func Reply(id json.RawMessage, kind string, data any) Envelope {
	if id == nil {
		id = json.RawMessage("null")
	}
	return Envelope{Data: data, Meta: Meta{ID: id, Type: kind}}
}

func Event(kind string, data any) Envelope {
	return Reply(nil, kind, data)
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
