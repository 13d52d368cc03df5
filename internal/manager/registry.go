package manager

import (
	"github.com/google/uuid"

	"github.com/bluerobotics-go/sonarfleetd/internal/deviceactor"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// entry is one registered device: its current known state plus the handle
// used to talk to its actor. Registry methods never touch the actor
// goroutine directly; everything flows back through the Manager's own
// mailbox loop, so entry itself needs no locking.
type entry struct {
	info   sonar.DeviceInfo
	handle deviceactor.Handle
	done   chan struct{}
	cancel func()
}

// registry is the Manager's device table, keyed by uuid.UUID exactly as
// webpa-common's device registry keys by device ID. It is only ever touched
// from the Manager's single goroutine, matching that package's comment that
// registry mutation happens under the owning manager's control.
type registry struct {
	devices map[uuid.UUID]*entry
}

func newRegistry() *registry {
	return &registry{devices: make(map[uuid.UUID]*entry)}
}

func (r *registry) get(id uuid.UUID) (*entry, bool) {
	e, ok := r.devices[id]
	return e, ok
}

func (r *registry) has(id uuid.UUID) bool {
	_, ok := r.devices[id]
	return ok
}

func (r *registry) add(id uuid.UUID, e *entry) {
	r.devices[id] = e
}

func (r *registry) remove(id uuid.UUID) (*entry, bool) {
	e, ok := r.devices[id]
	if ok {
		delete(r.devices, id)
	}
	return e, ok
}

// visitAll applies fn to every registered device, in the Registry-interface
// "Visitor pattern" style of the teacher's device.Registry.
func (r *registry) visitAll(fn func(*entry)) int {
	n := 0
	for _, e := range r.devices {
		fn(e)
		n++
	}
	return n
}

func (r *registry) len() int {
	return len(r.devices)
}
