package manager

import "github.com/bluerobotics-go/sonarfleetd/pkg/sonar"

// EventType tags the kind of lifecycle notification a Listener receives,
// mirroring the teacher's device.Event/Listener split (Connect/Disconnect)
// generalized to this spec's three device lifecycle events (spec.md §4.4).
type EventType int

const (
	EventCreated EventType = iota
	EventDeleted
	EventStatusChanged
)

// Event is dispatched to every registered Listener on device lifecycle
// transitions. No method on Manager should be called back from within a
// Listener, or the Manager's single goroutine deadlocks against itself —
// exactly the warning webpa-common's Registry.VisitAll documents.
type Event struct {
	Type   EventType
	Device sonar.DeviceInfo
}

// Listener observes Manager lifecycle events.
type Listener func(Event)
