package service

import (
	"encoding/json"

	ws "backoffice/internal/websocket"
)

// LedgerEvent is the payload broadcast to back-office dashboards when
// the ledger or stock changes.
type LedgerEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// publishEvent broadcasts best-effort; a nil hub (tests) is a no-op and
// a marshalling failure never fails the business operation.
func publishEvent(hub *ws.Hub, event string, data map[string]interface{}) {
	if hub == nil {
		return
	}
	payload, err := json.Marshal(LedgerEvent{Event: event, Data: data})
	if err != nil {
		return
	}
	hub.Broadcast <- payload
}
