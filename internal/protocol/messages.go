// ABOUTME: Remote control protocol message type definitions
// ABOUTME: Defines the JSON envelope and payloads exchanged over the control socket
package protocol

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the control protocol revision
const ProtocolVersion = 1

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeServerHello   = "server/hello"
	TypeCommand       = "client/command"
	TypeStatusRequest = "client/status"
	TypeAck           = "server/ack"
	TypeError         = "server/error"
	TypeStatus        = "server/status"
	TypeCompletion    = "server/completion"
)

// Command actions
const (
	ActionLoad      = "load"
	ActionClear     = "clear"
	ActionPause     = "pause"
	ActionResume    = "resume"
	ActionToggle    = "toggle"
	ActionPauseAll  = "pause_all"
	ActionResumeAll = "resume_all"
	ActionSeek      = "seek"
	ActionVolume    = "volume"
	ActionMode      = "mode"
	ActionSwap      = "swap"
	ActionPrimary   = "primary"
	ActionNext      = "next"
	ActionPrev      = "prev"
)

// Error codes
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeDuplicateID = "duplicate_client_id"
	ErrCodeFailed      = "command_failed"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by controllers to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the player's response to client/hello
type ServerHello struct {
	ServerID   string      `json:"server_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// Command asks the player to perform one action.
// Slot is "A" or "B" where the action targets a slot. Value carries the
// action argument: a source path, milliseconds, a gain, a mode name or a
// boolean.
type Command struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
	Slot   string `json:"slot,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Ack confirms a command was applied
type Ack struct {
	ID     string `json:"id,omitempty"`
	Action string `json:"action"`
}

// Error reports a rejected command or handshake
type Error struct {
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SlotStatus describes one playback slot
type SlotStatus struct {
	Slot        string  `json:"slot"`
	Source      string  `json:"source,omitempty"`
	Title       string  `json:"title,omitempty"`
	Track       int     `json:"track,omitempty"`
	Tracks      int     `json:"tracks,omitempty"`
	Loaded      bool    `json:"loaded"`
	Paused      bool    `json:"paused"`
	Playing     bool    `json:"playing"`
	EndOfStream bool    `json:"end_of_stream"`
	Volume      float64 `json:"volume"`
	ProgressMs  int64   `json:"progress_ms"`
	DurationMs  int64   `json:"duration_ms"`
}

// Status is the full player state
type Status struct {
	Running    bool         `json:"running"`
	Mode       string       `json:"mode"`
	Swapped    bool         `json:"swapped"`
	Primary    string       `json:"primary"`
	SampleRate int          `json:"sample_rate"`
	Slots      []SlotStatus `json:"slots"`
}

// Completion announces that a slot reached the end of its source
type Completion struct {
	Slot   string `json:"slot"`
	Source string `json:"source,omitempty"`
}

// Encode wraps payload in a Message and marshals it
func Encode(msgType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Payload: payload})
}

// DecodePayload re-marshals a generic payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}
