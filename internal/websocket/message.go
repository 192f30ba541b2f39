package websocket

import (
	"encoding/json"

	"crew/internal/model"
)

const envelopeHistory = "history"

// Envelope 推送给客户端的消息
type Envelope struct {
	Type  string              `json:"type"`
	Event *model.HistoryEvent `json:"event"`
}

func encodeEvent(event *model.HistoryEvent) ([]byte, error) {
	return json.Marshal(Envelope{Type: envelopeHistory, Event: event})
}

func decodeEvent(data []byte) (*model.HistoryEvent, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env.Event, nil
}

// Subscription 客户端的订阅条件，空字段表示不限制
type Subscription struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

func (s Subscription) Matches(event *model.HistoryEvent) bool {
	if event == nil {
		return false
	}
	if s.GroupID != "" && (event.GroupID == nil || *event.GroupID != s.GroupID) {
		return false
	}
	if s.UserID != "" && (event.UserID == nil || *event.UserID != s.UserID) {
		return false
	}
	return true
}
