package sonar

import "github.com/google/uuid"

// ModifyKind is the tagged union of supported ModifyDevice mutations.
// Spec.md names only "Ip" today; the tag is kept open for future variants.
type ModifyKind int

const (
	ModifyIP ModifyKind = iota
)

// Modify describes a ModifyDevice mutation.
type Modify struct {
	Kind  ModifyKind
	NewIP string
}

// Request is the external request taxonomy (spec.md §6), tagged by Command.
type Request struct {
	Command          Command
	Source           SourceSelection
	DeviceSelection  DeviceSelection
	ID               uuid.UUID
	DeviceRequest    interface{}
	Modify           Modify
}

// Command tags a Request's concrete shape.
type Command int

const (
	CmdAutoCreate Command = iota
	CmdCreate
	CmdDelete
	CmdList
	CmdInfo
	CmdSearch
	CmdPing
	CmdGetDeviceHandler
	CmdModifyDevice
	CmdEnableContinuousMode
	CmdDisableContinuousMode
)

func (c Command) String() string {
	switch c {
	case CmdAutoCreate:
		return "AutoCreate"
	case CmdCreate:
		return "Create"
	case CmdDelete:
		return "Delete"
	case CmdList:
		return "List"
	case CmdInfo:
		return "Info"
	case CmdSearch:
		return "Search"
	case CmdPing:
		return "Ping"
	case CmdGetDeviceHandler:
		return "GetDeviceHandler"
	case CmdModifyDevice:
		return "ModifyDevice"
	case CmdEnableContinuousMode:
		return "EnableContinuousMode"
	case CmdDisableContinuousMode:
		return "DisableContinuousMode"
	default:
		return "Unknown"
	}
}

// AnswerKind tags an Answer's concrete shape.
type AnswerKind int

const (
	AnswerDeviceInfoList AnswerKind = iota
	AnswerDeviceMessage
	AnswerInnerDeviceHandler
)

// Answer is the external answer taxonomy (spec.md §6).
type Answer struct {
	Kind       AnswerKind
	DeviceInfo []DeviceInfo

	// DeviceMessage fields.
	Message  interface{}
	DeviceID uuid.UUID

	// InnerDeviceHandler is internal-only: never serialized, only used by
	// the facade to talk directly to a device actor.
	Handler interface{}
}
