// Package facade implements spec.md §4.7: the thin translation layer
// between an external request and Manager mailbox traffic. Its only
// specialization is CmdPing, which is routed directly to the device actor's
// own mailbox instead of round-tripping through the Manager, so a slow
// device never head-of-line-blocks unrelated Manager requests.
package facade

import (
	"context"

	kitlog "github.com/go-kit/kit/log"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/internal/deviceactor"
	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

// ManagerSubmitter is the subset of *manager.Manager the facade depends on.
// Declaring it here (rather than importing internal/manager directly) keeps
// the facade testable against a fake without spinning up a real Manager
// mailbox loop.
type ManagerSubmitter interface {
	Submit(ctx context.Context, req sonar.Request) (sonar.Answer, error)
}

// Facade is the wire-facing entry point external callers submit requests
// to.
type Facade struct {
	manager ManagerSubmitter
	logger  kitlog.Logger
}

// New constructs a Facade over manager.
func New(manager ManagerSubmitter, logger kitlog.Logger) *Facade {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	return &Facade{manager: manager, logger: logger}
}

// Submit implements spec.md §4.7: for a Ping request, first fetch the
// device's mailbox handle via GetDeviceHandler, then send the PingRequest
// directly to the actor; for everything else, forward to the Manager and
// await its reply.
func (f *Facade) Submit(ctx context.Context, req sonar.Request) (sonar.Answer, error) {
	if req.Command != sonar.CmdPing {
		return f.manager.Submit(ctx, req)
	}
	return f.submitPing(ctx, req)
}

func (f *Facade) submitPing(ctx context.Context, req sonar.Request) (sonar.Answer, error) {
	handlerAnswer, err := f.manager.Submit(ctx, sonar.Request{
		Command: sonar.CmdGetDeviceHandler,
		ID:      req.ID,
	})
	if err != nil {
		return sonar.Answer{}, err
	}

	handle, ok := handlerAnswer.Handler.(deviceactor.Handle)
	if !ok {
		return sonar.Answer{}, sonar.ErrOther{Msg: "manager returned no device handle"}
	}

	pingRequest, ok := req.DeviceRequest.(driver.PingRequest)
	if !ok {
		return sonar.Answer{}, sonar.ErrOther{Msg: "ping request missing a device request payload"}
	}

	response, err := handle.Request(ctx, pingRequest)
	if err != nil {
		common.Warn(f.logger).Log("event", "ping request failed", "device", req.ID, "error", err)
		return sonar.Answer{}, err
	}

	return sonar.Answer{
		Kind:     sonar.AnswerDeviceMessage,
		DeviceID: req.ID,
		Message:  response,
	}, nil
}
