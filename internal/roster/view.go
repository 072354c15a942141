package roster

import (
	"encoding/json"

	"github.com/dreamware/fleetdash/internal/api"
)

// View is the reconciled state of one robot: either Offline or Online.
type View interface {
	// DisplayName is the name shown for the robot.
	DisplayName() string
	// IsOnline reports whether the robot was in the online set.
	IsOnline() bool

	isView()
}

// Offline is the view of a registered robot that is not connected. Name is
// the robot's identifier; no name lookup is made for offline robots.
type Offline struct {
	Name string
}

// Online is the fully hydrated view of a connected robot.
type Online struct {
	Name    string
	Detail  api.RobotDetail
	Network api.NetworkSnapshot
}

func (o Offline) DisplayName() string { return o.Name }
func (o Offline) IsOnline() bool      { return false }
func (Offline) isView()               {}

func (o Online) DisplayName() string { return o.Name }
func (o Online) IsOnline() bool      { return true }
func (Online) isView()               {}

// Entry pairs a robot identifier with its view.
type Entry struct {
	ID   string
	View View
}

type entryJSON struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Online  bool                 `json:"online"`
	Detail  *api.RobotDetail     `json:"detail,omitempty"`
	Network *api.NetworkSnapshot `json:"network,omitempty"`
}

// MarshalJSON flattens the view into a tagged object.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{ID: e.ID}
	switch v := e.View.(type) {
	case Online:
		out.Name = v.Name
		out.Online = true
		out.Detail = &v.Detail
		out.Network = &v.Network
	case Offline:
		out.Name = v.Name
	}
	return json.Marshal(out)
}

// Counts returns how many entries are online and offline.
func Counts(entries []Entry) (online, offline int) {
	for _, e := range entries {
		if e.View.IsOnline() {
			online++
		} else {
			offline++
		}
	}
	return online, offline
}
