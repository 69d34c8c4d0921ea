// Package notify — notification.go
//
// Notification is the value object sent upstream on important FSM
// transitions.
package notify

// MsgField is the required human-readable message key.
const MsgField = "msg"

// Notification carries an originating sprinkler id, a destination
// address, and an unordered field map. Required: MsgField. Anticipated-OOM
// notifications additionally carry the pod namespace/name/uid; other-OOM
// notifications carry "name".
type Notification struct {
	SprinklerID uint64
	Address     string
	Fields      map[string]string
}

// New creates a Notification with msg pre-populated.
func New(sprinklerID uint64, address, msg string) Notification {
	return Notification{
		SprinklerID: sprinklerID,
		Address:     address,
		Fields:      map[string]string{MsgField: msg},
	}
}

// With returns n with an additional field set (mutates and returns n's map
// for fluent construction at call sites).
func (n Notification) With(key, value string) Notification {
	n.Fields[key] = value
	return n
}
