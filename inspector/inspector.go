package inspector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/gattwalk/internal/gatt"
	"github.com/srg/gattwalk/internal/gatttool"
	"github.com/srg/gattwalk/internal/ptyio"
	"github.com/srg/gattwalk/pkg/config"
	"github.com/srg/gattwalk/pkg/report"
)

// Progress messages reported through ProgressCallback.
const (
	PhaseConnectFailed        = "Failed to connect. Is device advertising?"
	PhaseServiceDiscovery     = "Starting service discovery..."
	PhaseCharacteristicsFound = "Starting characteristic discovery..."
)

// ProgressCallback is called when the inspection phase changes
type ProgressCallback func(phase string)

// ServicesCallback receives the services view once it is complete, before
// characteristic discovery starts.
type ServicesCallback func(rows []report.ServiceRow) error

// InspectOptions defines options for inspecting a peripheral through gatttool
type InspectOptions struct {
	Tool            string        // gatttool executable
	Adapter         string        // -i <hciX>, empty = default adapter
	AddressType     string        // config.AddressPublic or config.AddressRandom
	ConnectTimeout  time.Duration // bounds the connect exchange
	ResponseTimeout time.Duration // bounds every other request
	SettleDelay     time.Duration // pause after connecting
	PageSettle      time.Duration // wait for further rows of a short char-desc page
	BestEffort      bool          // continue when the connection is refused
}

// OptionsFromConfig maps the application configuration onto InspectOptions.
func OptionsFromConfig(cfg *config.Config) *InspectOptions {
	return &InspectOptions{
		Tool:            cfg.Tool,
		Adapter:         cfg.Adapter,
		AddressType:     cfg.AddressType,
		ConnectTimeout:  cfg.ConnectTimeout,
		ResponseTimeout: cfg.ResponseTimeout,
		SettleDelay:     cfg.SettleDelay,
		PageSettle:      cfg.PageSettle,
		BestEffort:      cfg.BestEffortConnect(),
	}
}

// InspectCallback processes a connected session and produces output of type R
type InspectCallback[R any] func(gatttool.Transport) (R, error)

// ToolArgs builds the gatttool command line for an interactive session.
func ToolArgs(address string, opts *InspectOptions) []string {
	args := []string{"-b", address}
	if opts.Adapter != "" {
		args = append(args, "-i", opts.Adapter)
	}
	if opts.AddressType == config.AddressRandom {
		args = append(args, "-t", config.AddressRandom)
	}
	return append(args, "--interactive")
}

// InspectDevice starts gatttool on a pty, connects to the peripheral and
// executes the callback with the live session. The process lifecycle
// (spawn, connect, disconnect, teardown) is managed automatically.
func InspectDevice[R any](ctx context.Context, address string, opts *InspectOptions, logger *logrus.Logger, progressCallback ProgressCallback, callback InspectCallback[R]) (R, error) {
	var zero R
	opts = withDefaults(opts)
	if logger == nil {
		logger = logrus.New()
	}

	proc, err := ptyio.Start(ctx, &ptyio.Options{
		Path:   opts.Tool,
		Args:   ToolArgs(address, opts),
		Logger: logger,
	})
	if err != nil {
		return zero, err
	}
	defer func() {
		if err := proc.Close(); err != nil {
			logger.WithError(err).Debug("gatttool teardown reported an error")
		}
	}()

	session := gatttool.NewSession(proc, &gatttool.SessionOptions{
		ResponseTimeout: opts.ResponseTimeout,
		Logger:          logger,
	})
	return InspectSession(ctx, session, address, opts, logger, progressCallback, callback)
}

// InspectSession runs the connect, settle, callback and disconnect sequence
// on an already started gatttool session.
func InspectSession[R any](ctx context.Context, t gatttool.Transport, address string, opts *InspectOptions, logger *logrus.Logger, progressCallback ProgressCallback, callback InspectCallback[R]) (R, error) {
	var zero R
	opts = withDefaults(opts)
	if logger == nil {
		logger = logrus.New()
	}
	if progressCallback == nil {
		progressCallback = func(string) {} // No-op callback
	}

	if _, err := t.Expect(ctx, gatttool.PromptMarker); err != nil {
		return zero, fmt.Errorf("gatttool did not start: %w", err)
	}

	progressCallback(fmt.Sprintf("Connecting to '%s'...", address))

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	err := gatttool.Connect(connectCtx, t, address)
	cancel()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return zero, context.Canceled
		}
		progressCallback(PhaseConnectFailed)
		if !opts.BestEffort {
			return zero, err
		}
		logger.WithError(err).Warn("continuing without a confirmed connection")
	}

	// Ensure the link is released after the callback completes
	defer func() {
		if err := gatttool.Disconnect(t); err != nil {
			logger.WithError(err).Debug("failed to disconnect")
		}
	}()

	if opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(opts.SettleDelay):
		}
	}

	return callback(t)
}

// Discover walks the attribute table and builds both report views.
// servicesCallback may be nil.
func Discover(ctx context.Context, t gatttool.Transport, address string, opts *InspectOptions, logger *logrus.Logger, progressCallback ProgressCallback, servicesCallback ServicesCallback) (*report.Report, error) {
	opts = withDefaults(opts)
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if progressCallback == nil {
		progressCallback = func(string) {}
	}

	progressCallback(PhaseServiceDiscovery)
	walker := gatt.NewWalker(t, logger, &gatt.WalkerOptions{PageSettle: opts.PageSettle})
	table, err := walker.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("service discovery failed: %w", err)
	}

	reader := gatt.NewReader(t, logger)
	rep := &report.Report{
		Address:         address,
		Services:        make([]report.ServiceRow, 0, table.Len()),
		Characteristics: []report.CharacteristicRow{},
	}

	err = table.Each(func(handle, uuid string) error {
		decoded, err := reader.DecodeAttributeService(ctx, handle, uuid)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", handle, err)
		}
		rep.Services = append(rep.Services, report.ServiceRow{
			Handle:      handle,
			UUID:        uuid,
			Description: gatt.AttributeName(uuid),
			Value:       decoded.Value,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if servicesCallback != nil {
		if err := servicesCallback(rep.Services); err != nil {
			return nil, err
		}
	}

	progressCallback(PhaseCharacteristicsFound)
	chars, err := gatt.ScanCharacteristics(ctx, reader, table)
	if err != nil {
		return nil, fmt.Errorf("characteristic discovery failed: %w", err)
	}

	err = chars.Each(func(valueHandle string, c gatt.Characteristic) error {
		props, err := gatt.PropertyName(c.Properties)
		if err != nil {
			return fmt.Errorf("characteristic %s: %w", valueHandle, err)
		}
		row := report.CharacteristicRow{
			Handle:      valueHandle,
			UUID:        c.ValueUUID,
			Description: gatt.AttributeName(c.ValueUUID),
			Properties:  props,
		}

		parsed, _ := gatt.ParseProperties(c.Properties)
		if parsed.Readable() {
			decoded, err := reader.DecodeCharacteristicValue(ctx, valueHandle, c.ValueUUID)
			if err != nil {
				return fmt.Errorf("characteristic %s: %w", valueHandle, err)
			}
			row.Value = decoded.Value
		}
		rep.Characteristics = append(rep.Characteristics, row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"attributes":      len(rep.Services),
		"characteristics": len(rep.Characteristics),
	}).Info("discovery complete")
	return rep, nil
}

func withDefaults(opts *InspectOptions) *InspectOptions {
	if opts == nil {
		return OptionsFromConfig(config.DefaultConfig())
	}
	o := *opts
	if o.Tool == "" {
		o.Tool = "gatttool"
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 30 * time.Second
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = gatttool.DefaultResponseTimeout
	}
	return &o
}
