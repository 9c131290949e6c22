package models

import (
	"time"
)

// AlertChannel identifies a delivery channel. ChannelAll expands to
// every concrete channel at dispatch time.
type AlertChannel string

const (
	ChannelTelegram  AlertChannel = "telegram"
	ChannelEmail     AlertChannel = "email"
	ChannelWebsocket AlertChannel = "websocket"
	ChannelAll       AlertChannel = "all"
)

// AlertKind categorizes an alert for history and gating purposes.
type AlertKind string

const (
	AlertSignal   AlertKind = "signal"
	AlertPrice    AlertKind = "price"
	AlertVolume   AlertKind = "volume"
	AlertOverview AlertKind = "overview"
)

// AlertRecipient is one subscriber and their channel configuration.
// Rows are owned by the external subscription system; the core only
// reads them.
type AlertRecipient struct {
	UserID         int64          `json:"user_id"`
	Email          string         `json:"email,omitempty"`
	TelegramChatID string         `json:"telegram_chat_id,omitempty"`
	Channels       []AlertChannel `json:"channels"`
}

// ChannelResult is the delivery outcome on a single channel.
type ChannelResult struct {
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// DispatchResult reports the outcome of one dispatch attempt. A gate
// rejection sets Sent=false with a reason and an empty channel map; it
// is a normal outcome, not a failure.
type DispatchResult struct {
	Sent     bool                           `json:"sent"`
	Reason   string                         `json:"reason,omitempty"`
	Channels map[AlertChannel]ChannelResult `json:"channels,omitempty"`
}

// AlertRecord is one entry in the dispatcher's bounded history.
type AlertRecord struct {
	Kind      AlertKind                      `json:"type"`
	Symbol    string                         `json:"symbol"`
	Results   map[AlertChannel]ChannelResult `json:"results"`
	Timestamp time.Time                      `json:"timestamp"`
}
