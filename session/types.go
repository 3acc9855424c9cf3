package session

import (
	"encoding/json"

	"github.com/nodius/graphsync/instruction"
	"github.com/nodius/graphsync/store"
)

// InMessage is the envelope for every client->server WebSocket message
// (spec.md §6's client message table). Not every field applies to every
// Type; unused fields are simply omitted by the client and left zero here.
type InMessage struct {
	Type string `json:"type"`
	ID   string `json:"_id,omitempty"`

	GraphKey      string `json:"graphKey,omitempty"`
	NodeConfigKey string `json:"nodeConfigKey,omitempty"`
	SheetID       string `json:"sheetId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	UserName      string `json:"userName,omitempty"`
	FromTimestamp int64  `json:"fromTimestamp,omitempty"`

	Instructions []InstructionEnvelope `json:"instructions,omitempty"`

	Nodes    []store.Node `json:"nodes,omitempty"`
	Edges    []store.Edge `json:"edges,omitempty"`
	NodeKeys []string     `json:"nodeKeys,omitempty"`
	EdgeKeys []string     `json:"edgeKeys,omitempty"`

	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`

	Enabled bool `json:"enabled,omitempty"`
	Count   int  `json:"count,omitempty"`
}

// InstructionEnvelope wraps one edit with its target and options, as carried
// in applyInstructionToGraph/applyInstructionToNodeConfig's instructions
// list.
type InstructionEnvelope struct {
	SheetID             string                 `json:"sheetId,omitempty"`
	NodeID              string                 `json:"nodeId,omitempty"`
	EdgeID              string                 `json:"edgeId,omitempty"`
	I                   instruction.Instruction `json:"i"`
	ApplyUniqIdentifier bool                   `json:"applyUniqIdentifier,omitempty"`
	TargetedIdentifier  string                 `json:"targetedIdentifier,omitempty"`
	TriggerHTMLRender   bool                   `json:"triggerHtmlRender,omitempty"`
	AnimatePos          bool                   `json:"animatePos,omitempty"`
}

// response builds the standard {_id, _response:{ok,message}} reply shape.
func response(id string, ok bool, message string) map[string]any {
	r := map[string]any{"ok": ok}
	if message != "" {
		r["message"] = message
	}
	out := map[string]any{"_response": r}
	if id != "" {
		out["_id"] = id
	}
	return out
}

// redirectResponse builds the register-redirect reply per spec.md §6.
func redirectResponse(id, host string, port int) map[string]any {
	out := response(id, false, "handled elsewhere")
	out["redirect"] = map[string]any{"host": host, "port": port}
	return out
}

func okWithField(id string, field string, value any) map[string]any {
	out := response(id, true, "")
	out[field] = value
	return out
}

// marshalForHistory serializes a fan-out message for storage in
// instructionHistory and for replay during catch-up.
func marshalForHistory(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
