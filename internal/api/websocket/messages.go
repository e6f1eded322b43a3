package websocket

import (
	"time"

	"github.com/openremoteio/remoteio/internal/types"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Channel data messages
	MessageTypeChannelReading   MessageType = "channel_reading"
	MessageTypeAggregateReading MessageType = "aggregate_reading"

	// Device lifecycle messages
	MessageTypeDeviceState MessageType = "device_state"
	MessageTypeDeviceError MessageType = "device_error"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ChannelReadingData carries one channel value update.
type ChannelReadingData struct {
	Device  string        `json:"device"`
	Channel string        `json:"channel"`
	Quality types.Quality `json:"quality"`
	Value   interface{}   `json:"value"`
}

// AggregateReadingData carries a full-bank value update. Analog
// entries are pointers so NaN sentinels survive JSON transport as
// nulls.
type AggregateReadingData struct {
	Device  string        `json:"device"`
	Channel string        `json:"channel"`
	Quality types.Quality `json:"quality"`
	Analog  []*float64    `json:"analog,omitempty"`
	Digital []bool        `json:"digital,omitempty"`
}

// SystemStatusData carries a system-wide state transition.
type SystemStatusData struct {
	State string `json:"state"`
}

// DeviceStateData carries a lifecycle state transition.
type DeviceStateData struct {
	Device string `json:"device"`
	State  string `json:"state"`
}

// DeviceErrorData carries a fault notification.
type DeviceErrorData struct {
	Device  string `json:"device"`
	Message string `json:"message"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewChannelReadingMessage(device, channel string, reading types.Reading) Message {
	return NewMessage(MessageTypeChannelReading, ChannelReadingData{
		Device:  device,
		Channel: channel,
		Quality: reading.Quality,
		Value:   types.JSONValue(reading.Value),
	})
}

func NewAggregateReadingMessage(device, channel string, reading types.AggregateReading) Message {
	return NewMessage(MessageTypeAggregateReading, AggregateReadingData{
		Device:  device,
		Channel: channel,
		Quality: reading.Quality,
		Analog:  types.JSONAnalog(reading.Analog),
		Digital: reading.Digital,
	})
}

func NewSystemStatusMessage(state string) Message {
	return NewMessage(MessageTypeSystemStatus, SystemStatusData{State: state})
}

func NewDeviceStateMessage(device, state string) Message {
	return NewMessage(MessageTypeDeviceState, DeviceStateData{
		Device: device,
		State:  state,
	})
}

func NewDeviceErrorMessage(device, message string) Message {
	return NewMessage(MessageTypeDeviceError, DeviceErrorData{
		Device:  device,
		Message: message,
	})
}
