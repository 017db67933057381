package session

import (
	"encoding/json"

	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/navigation"
)

// Client message types.
const (
	MsgSelectPath        = "select_path"
	MsgKeyDown           = "key_down"
	MsgKeyUp             = "key_up"
	MsgPress             = "press"
	MsgWheel             = "wheel"
	MsgSwipe             = "swipe"
	MsgGoTo              = "go_to"
	MsgAutoAdvance       = "auto_advance"
	MsgPathMode          = "path_mode"
	MsgOrbit             = "orbit"
	MsgPan               = "pan"
	MsgZoom              = "zoom"
	MsgSelectItem        = "select_item"
	MsgLoadMore          = "load_more"
	MsgDismissOnboarding = "dismiss_onboarding"
)

// Server message types.
const (
	MsgHello    = "hello"
	MsgItems    = "items"
	MsgSelected = "selected"
	MsgFrame    = "frame"
	MsgError    = "error"
)

// Inbound is a client message. Only the fields of its type are read.
type Inbound struct {
	Type    string     `json:"type"`
	Path    string     `json:"path,omitempty"`
	Key     string     `json:"key,omitempty"`
	Forward bool       `json:"forward,omitempty"`
	DeltaY  float64    `json:"deltaY,omitempty"`
	Start   [2]float64 `json:"start,omitempty"`
	End     [2]float64 `json:"end,omitempty"`
	Index   int        `json:"index,omitempty"`
	On      bool       `json:"on,omitempty"`
	DX      float64    `json:"dx,omitempty"`
	DY      float64    `json:"dy,omitempty"`
	Scale   float64    `json:"scale,omitempty"`
	ID      string     `json:"id,omitempty"`
}

// Outbound wraps every server message.
type Outbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Hello struct {
	SessionID      string  `json:"sessionId"`
	OnboardingSeen bool    `json:"onboardingSeen"`
	FrameRate      float64 `json:"frameRate"`
}

type ItemsPayload struct {
	Path          collectibles.Path   `json:"path"`
	Items         []collectibles.Item `json:"items"`
	Positions     []navigation.Vec3   `json:"positions"`
	UsingFallback bool                `json:"usingFallback"`
	HasMore       bool                `json:"hasMore"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func encode(typ string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Outbound{Type: typ, Data: raw})
}
