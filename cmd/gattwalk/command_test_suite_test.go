package main

import (
	"bytes"
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/srg/gattwalk/inspector"
	"github.com/srg/gattwalk/internal/gatttool"
	"github.com/srg/gattwalk/internal/testutils"
	"github.com/srg/gattwalk/pkg/report"
	"github.com/stretchr/testify/suite"
)

const testDeviceAddress = testutils.DefaultPeripheralAddress

// CommandTestSuite runs the root command against a simulated gatttool.
type CommandTestSuite struct {
	suite.Suite
	peripheral      *testutils.PeripheralBuilder
	console         *testutils.PeripheralConsole
	originalTerm    func(*os.File) bool
	originalInspect func(context.Context, string, *inspector.InspectOptions, *logrus.Logger, inspector.ProgressCallback, inspector.InspectCallback[*report.Report]) (*report.Report, error)
}

func (s *CommandTestSuite) SetupTest() {
	s.peripheral = testutils.NewPeripheralBuilder().
		WithService(0x0001, 0x1800).
		WithCharacteristic(0x0002, 0x02, 0x2a00, []byte("demo")).
		WithCharacteristic(0x0004, 0x12, 0x2a29, []byte("ACME"))
	s.console = nil

	s.originalTerm = isTerminal
	isTerminal = func(*os.File) bool { return false }

	s.originalInspect = inspectDevice
	inspectDevice = func(ctx context.Context, address string, opts *inspector.InspectOptions, logger *logrus.Logger, progress inspector.ProgressCallback, callback inspector.InspectCallback[*report.Report]) (*report.Report, error) {
		s.console = s.peripheral.Build()
		session := gatttool.NewSession(s.console, &gatttool.SessionOptions{ResponseTimeout: opts.ResponseTimeout, Logger: logger})
		return inspector.InspectSession(ctx, session, address, opts, logger, progress, callback)
	}
}

func (s *CommandTestSuite) TearDownTest() {
	inspectDevice = s.originalInspect
	isTerminal = s.originalTerm
}

// ExecuteCommand runs a fresh root command with args and returns stdout and stderr.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	cmd := newRootCommand()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
