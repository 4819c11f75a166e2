package websocket

import (
	"encoding/json"

	"github.com/imba3r/kedai/store"
)

type Operation string

const (
	// Incoming
	Subscribe   Operation = "SUBSCRIBE"
	Unsubscribe Operation = "UNSUBSCRIBE"
	Add         Operation = "ADD"
	Set         Operation = "SET"
	Update      Operation = "UPDATE"
	Merge       Operation = "MERGE"
	Delete      Operation = "DELETE"

	// Outgoing
	ValueChange Operation = "VALUE_CHANGE"
	Result      Operation = "RESULT"
	Failure     Operation = "ERROR"
)

// Message is the single frame shape in both directions. RequestID pairs a
// RESULT or ERROR with the request that caused it; subscription failures
// carry the subscribed key and RequestID 0. Parameters narrow a SUBSCRIBE
// and are echoed on every VALUE_CHANGE and subscription ERROR it causes.
type Message struct {
	Operation  Operation        `json:"operation"`
	Key        string           `json:"key"`
	RequestID  uint64           `json:"requestId,omitempty"`
	Parameters *store.Selection `json:"operationParameters,omitempty"`
	Error      *Error           `json:"error,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`
}

func (m Message) Selection() store.Selection {
	if m.Parameters == nil {
		return store.Selection{}
	}
	return *m.Parameters
}

// Parameters returns the wire form of sel, nil for the whole collection.
func Parameters(sel store.Selection) *store.Selection {
	if sel.IsZero() {
		return nil
	}
	return &sel
}

// SubscriptionID tells apart subscriptions to the same key with different
// selections.
func SubscriptionID(key string, sel store.Selection) string {
	if sel.IsZero() {
		return key
	}
	return key + "?" + sel.String()
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodePermissionDenied = "permission-denied"
	CodeNotFound         = "not-found"
	CodeInvalidArgument  = "invalid-argument"
	CodeInternal         = "internal"
)

// AddResult is the payload of the RESULT answering an ADD.
type AddResult struct {
	ID string `json:"id"`
}
