// Command sonarsvc wires the device manager, discovery service and firmware
// updater together and runs them until a termination signal arrives. The
// HTTP/WebSocket server that exposes the facade over the network is out of
// scope (spec.md §1): this binary runs the supervisory core headless,
// ready for that layer to sit in front of facade.Facade.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/bluerobotics-go/sonarfleetd/internal/common"
	"github.com/bluerobotics-go/sonarfleetd/internal/config"
	"github.com/bluerobotics-go/sonarfleetd/internal/discovery"
	"github.com/bluerobotics-go/sonarfleetd/internal/driver"
	"github.com/bluerobotics-go/sonarfleetd/internal/facade"
	"github.com/bluerobotics-go/sonarfleetd/internal/firmware"
	"github.com/bluerobotics-go/sonarfleetd/internal/manager"
	"github.com/bluerobotics-go/sonarfleetd/pkg/sonar"
)

func main() {
	os.Exit(sonarsvc(os.Args))
}

// sonarsvc is factored out of main so its control flow can return an exit
// code instead of calling os.Exit directly, the same split tr1d1um.go uses
// between tr1d1um(arguments) and main().
func sonarsvc(arguments []string) int {
	configPath := "sonarsvc.toml"
	if len(arguments) > 1 {
		configPath = arguments[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to load configuration: %s\n", err.Error())
		return 1
	}

	logger := common.NewLogger(cfg.Logging.Level)
	common.Info(logger).Log("event", "starting", "config", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr := manager.New(manager.Config{Logger: logger, Codec: unimplementedCodec})

	disco := discovery.New(discovery.Config{
		Logger:           logger,
		Schedule:         fmt.Sprintf("@every %s", cfg.Discovery.Interval()),
		UsePlatformProbe: cfg.Discovery.PlatformProbe,
		Resolve:          discovery.NewResolver(unimplementedCodec),
	})

	_ = firmware.New(firmware.Config{
		Logger:   logger,
		CacheDir: cfg.Firmware.CacheDir,
		ToolsDir: cfg.Firmware.ToolsDir,
	})

	app := facade.New(mgr, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		mgr.Run(ctx)
	}()

	go func() {
		if err := disco.Run(ctx); err != nil {
			common.Error(logger).Log("event", "discovery stopped", "error", err)
		}
	}()

	go adoptDiscoveredDevices(ctx, app, disco, logger)
	go publishKnownDevices(ctx, mgr, disco)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	sig := <-signals
	common.Info(logger).Log("event", "exiting due to signal", "signal", sig)

	cancel()
	<-done

	return 0
}

// unimplementedCodec is the placeholder manager.CodecFactory: the
// ping-protocol wire codec is an external collaborator this module never
// implements (spec.md §1). Production deployments must supply their own
// CodecFactory in place of this one.
func unimplementedCodec(stream io.ReadWriteCloser) driver.PingTransport {
	return unimplementedTransport{}
}

type unimplementedTransport struct{}

func (unimplementedTransport) Request(ctx context.Context, req driver.PingRequest) (driver.PingResponse, error) {
	return nil, sonar.ErrOther{Msg: "no ping-protocol codec configured"}
}

// adoptDiscoveredDevices feeds every newly discovered device into the
// Manager as a Create request, matching spec.md §4.5's "the Manager is
// responsible for the actor life cycle on Create" — discovery only
// identifies candidates, it never spawns an actor itself.
func adoptDiscoveredDevices(ctx context.Context, app *facade.Facade, disco *discovery.Service, logger interface {
	Log(keyvals ...interface{}) error
}) {
	discovered := disco.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case info, ok := <-discovered:
			if !ok {
				return
			}
			_, err := app.Submit(ctx, sonar.Request{
				Command:         sonar.CmdCreate,
				Source:          info.Source,
				DeviceSelection: info.DeviceType,
			})
			if err != nil {
				common.Warn(logger).Log("event", "failed to adopt discovered device", "source", info.Source.String(), "error", err)
			}
		}
	}
}

// publishKnownDevices periodically feeds the Manager's current registry
// snapshot into discovery's known-devices input (spec.md §4.5 step 1), so
// discovery stops proposing devices the Manager already owns.
func publishKnownDevices(ctx context.Context, mgr *manager.Manager, disco *discovery.Service) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			answer, err := mgr.Submit(ctx, sonar.Request{Command: sonar.CmdList})
			if err != nil {
				continue
			}
			disco.PublishKnownDevices(answer.DeviceInfo)
		}
	}
}
