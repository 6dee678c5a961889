package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/srg/gattwalk/internal/gatttool"
	"github.com/srg/gattwalk/internal/testutils"
	"github.com/srg/gattwalk/pkg/config"
	"github.com/srg/gattwalk/pkg/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testAddress = testutils.DefaultPeripheralAddress

func demoPeripheral() *testutils.PeripheralBuilder {
	return testutils.NewPeripheralBuilder().
		WithService(0x0001, 0x1800).
		WithCharacteristic(0x0002, 0x02, 0x2a00, []byte("demo")).
		WithCharacteristic(0x0004, 0x02, 0x2a01, []byte{0xc1, 0x03}).
		WithCharacteristic(0x0006, 0x02, 0x2a04, []byte{0x06, 0x00, 0x0c, 0x00, 0x00, 0x00, 0xf4, 0x01}).
		WithService(0x0008, 0x1801).
		WithCharacteristic(0x0009, 0x20, 0x2a05, []byte{0x01, 0x00, 0xff, 0xff}).
		WithAttribute(0x000b, "2902", 0x02, 0x00).
		WithService(0x000c, 0x180a).
		WithCharacteristic(0x000d, 0x12, 0x2a29, []byte("ACME")).
		WithAttribute(0x000f, "2901", []byte("Maker")...)
}

type InspectorTestSuite struct {
	suite.Suite
	helper *testutils.TestHelper
	phases []string
}

func (s *InspectorTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.phases = nil
}

func (s *InspectorTestSuite) progress(phase string) {
	s.phases = append(s.phases, phase)
}

// servicesRendered marks the services callback in the recorded phases.
const servicesRendered = "<services>"

func (s *InspectorTestSuite) services(rows []report.ServiceRow) error {
	s.phases = append(s.phases, servicesRendered)
	return nil
}

func (s *InspectorTestSuite) options() *InspectOptions {
	opts := OptionsFromConfig(config.DefaultConfig())
	opts.SettleDelay = 0
	opts.PageSettle = 10 * time.Millisecond
	opts.ResponseTimeout = time.Second
	return opts
}

func (s *InspectorTestSuite) session(console gatttool.Console, opts *InspectOptions) *gatttool.Session {
	return gatttool.NewSession(console, &gatttool.SessionOptions{ResponseTimeout: opts.ResponseTimeout, Logger: s.helper.Logger})
}

func (s *InspectorTestSuite) discover(opts *InspectOptions) InspectCallback[*report.Report] {
	return func(t gatttool.Transport) (*report.Report, error) {
		return Discover(context.Background(), t, testAddress, opts, s.helper.Logger, s.progress, s.services)
	}
}

func (s *InspectorTestSuite) TestInspectSessionDiscoversPeripheral() {
	console := demoPeripheral().Build()
	opts := s.options()

	rep, err := InspectSession(context.Background(), s.session(console, opts), testAddress, opts, s.helper.Logger, s.progress, s.discover(opts))
	s.Require().NoError(err, "inspection MUST succeed")

	actual, err := json.Marshal(rep)
	s.Require().NoError(err)

	testutils.NewJSONAsserter(s.T()).Assert(string(actual), `{
		"address": "AA:BB:CC:DD:EE:FF",
		"services": [
			{"handle": "0x0001", "uuid": "2800", "description": "primary service", "value": "access profile uuid:0x1800"},
			{"handle": "0x0002", "uuid": "2803", "description": "characteristic", "value": "handle: 0x0003 uuid: 0x2a00 prop: 0x02"},
			{"handle": "0x0003", "uuid": "2a00", "description": "name", "value": ""},
			{"handle": "0x0004", "uuid": "2803", "description": "characteristic", "value": "handle: 0x0005 uuid: 0x2a01 prop: 0x02"},
			{"handle": "0x0005", "uuid": "2a01", "description": "appearance", "value": ""},
			{"handle": "0x0006", "uuid": "2803", "description": "characteristic", "value": "handle: 0x0007 uuid: 0x2a04 prop: 0x02"},
			{"handle": "0x0007", "uuid": "2a04", "description": "preferred connection", "value": ""},
			{"handle": "0x0008", "uuid": "2800", "description": "primary service", "value": "attribute profile uuid:0x1801"},
			{"handle": "0x0009", "uuid": "2803", "description": "characteristic", "value": "handle: 0x000a uuid: 0x2a05 prop: 0x20"},
			{"handle": "0x000a", "uuid": "2a05", "description": "service changed", "value": ""},
			{"handle": "0x000b", "uuid": "2902", "description": "client char config", "value": ""},
			{"handle": "0x000c", "uuid": "2800", "description": "primary service", "value": "unknown uuid:0x180a"},
			{"handle": "0x000d", "uuid": "2803", "description": "characteristic", "value": "handle: 0x000e uuid: 0x2a29 prop: 0x12"},
			{"handle": "0x000e", "uuid": "2a29", "description": "manufacturer", "value": ""},
			{"handle": "0x000f", "uuid": "2901", "description": "description", "value": "'Maker'"}
		],
		"characteristics": [
			{"handle": "0x0003", "uuid": "2a00", "description": "name", "properties": "02 = Read", "value": "'demo'"},
			{"handle": "0x0005", "uuid": "2a01", "description": "appearance", "properties": "02 = Read", "value": "category: 961 sub-category: 0"},
			{"handle": "0x0007", "uuid": "2a04", "description": "preferred connection", "properties": "02 = Read", "value": "min = 7.5ms; max = 15.0ms; lat = 0.0ms; timeout = 5000.0ms"},
			{"handle": "0x000a", "uuid": "2a05", "description": "service changed", "properties": "20 = Indicate", "value": ""},
			{"handle": "0x000e", "uuid": "2a29", "description": "manufacturer", "properties": "12 = Read Notify", "value": "'ACME'"}
		]
	}`)

	s.Equal([]string{
		"Connecting to 'AA:BB:CC:DD:EE:FF'...",
		PhaseServiceDiscovery,
		servicesRendered,
		PhaseCharacteristicsFound,
	}, s.phases, "the services view MUST be handed out before characteristic discovery starts")

	commands := console.Commands()
	s.Require().GreaterOrEqual(len(commands), 3)
	s.Equal(gatttool.CmdConnect, commands[0])
	s.Equal([]string{gatttool.CmdDisconnect, gatttool.CmdExit}, commands[len(commands)-2:], "the link MUST be released after discovery")
	s.NotContains(commands, "char-read-hnd 0x000a", "a characteristic without the Read property MUST NOT be read")
}

func (s *InspectorTestSuite) TestDiscoverServicesCallbackError() {
	console := demoPeripheral().Build()
	opts := s.options()
	session := s.session(console, opts)
	_, err := session.Expect(context.Background(), gatttool.PromptMarker)
	s.Require().NoError(err)
	s.Require().NoError(gatttool.Connect(context.Background(), session, testAddress))

	failure := errors.New("stdout closed")
	_, err = Discover(context.Background(), session, testAddress, opts, s.helper.Logger, s.progress,
		func([]report.ServiceRow) error { return failure })

	s.ErrorIs(err, failure)
	s.NotContains(s.phases, PhaseCharacteristicsFound, "characteristic discovery MUST NOT start after the callback failed")
}

func (s *InspectorTestSuite) TestInspectSessionConnectFailFast() {
	console := demoPeripheral().WithConnectError("Connection refused (111)").Build()
	opts := s.options()

	called := false
	_, err := InspectSession(context.Background(), s.session(console, opts), testAddress, opts, s.helper.Logger, s.progress,
		func(gatttool.Transport) (*report.Report, error) {
			called = true
			return nil, nil
		})

	var connectErr *gatttool.ConnectError
	s.Require().True(errors.As(err, &connectErr), "error MUST be a *gatttool.ConnectError")
	s.Equal("Connection refused (111)", connectErr.Reason)
	s.False(called, "the callback MUST NOT run after a refused connection")
	s.Contains(s.phases, PhaseConnectFailed)
}

func (s *InspectorTestSuite) TestInspectSessionConnectBestEffort() {
	console := demoPeripheral().WithConnectError("Connection refused (111)").Build()
	opts := s.options()
	opts.BestEffort = true

	_, err := InspectSession(context.Background(), s.session(console, opts), testAddress, opts, s.helper.Logger, s.progress, s.discover(opts))

	s.ErrorIs(err, gatttool.ErrNotConnected, "discovery MUST run and report the missing link")
	s.Contains(s.phases, PhaseConnectFailed)
	s.Contains(s.phases, PhaseServiceDiscovery)
}

func (s *InspectorTestSuite) TestInspectSessionConnectTimeout() {
	console := demoPeripheral().WithSilentCommand(gatttool.CmdConnect).Build()
	opts := s.options()
	opts.ConnectTimeout = 50 * time.Millisecond

	_, err := InspectSession(context.Background(), s.session(console, opts), testAddress, opts, s.helper.Logger, s.progress, s.discover(opts))

	var connectErr *gatttool.ConnectError
	s.Require().True(errors.As(err, &connectErr))
	s.ErrorIs(err, gatttool.ErrTimeout)
}

func (s *InspectorTestSuite) TestInspectSessionSettleCancelled() {
	console := demoPeripheral().Build()
	opts := s.options()
	opts.SettleDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := InspectSession(ctx, s.session(console, opts), testAddress, opts, s.helper.Logger, s.progress, s.discover(opts))
	s.ErrorIs(err, context.Canceled)
}

func (s *InspectorTestSuite) TestInspectSessionNoPrompt() {
	console := testutils.NewScriptedConsole("", func(string) (string, bool) { return "", false })
	opts := s.options()
	opts.ResponseTimeout = 50 * time.Millisecond

	_, err := InspectSession(context.Background(), s.session(console, opts), testAddress, opts, s.helper.Logger, s.progress, s.discover(opts))
	s.ErrorIs(err, gatttool.ErrTimeout)
	s.Empty(s.phases)
}

func (s *InspectorTestSuite) TestInspectDeviceMissingTool() {
	opts := s.options()
	opts.Tool = "/nonexistent/gatttool"

	_, err := InspectDevice(context.Background(), testAddress, opts, s.helper.Logger, s.progress, s.discover(opts))
	s.Error(err)
}

func TestInspectorTestSuite(t *testing.T) {
	suite.Run(t, new(InspectorTestSuite))
}

func TestToolArgs(t *testing.T) {
	opts := &InspectOptions{AddressType: config.AddressPublic}
	assert.Equal(t, []string{"-b", testAddress, "--interactive"}, ToolArgs(testAddress, opts))

	opts = &InspectOptions{Adapter: "hci1", AddressType: config.AddressRandom}
	assert.Equal(t, []string{"-b", testAddress, "-i", "hci1", "-t", "random", "--interactive"}, ToolArgs(testAddress, opts))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Adapter = "hci2"
	cfg.ConnectPolicy = config.ConnectBestEffort

	opts := OptionsFromConfig(cfg)

	require.NotNil(t, opts)
	assert.Equal(t, "gatttool", opts.Tool)
	assert.Equal(t, "hci2", opts.Adapter)
	assert.Equal(t, 30*time.Second, opts.ConnectTimeout)
	assert.Equal(t, 10*time.Second, opts.ResponseTimeout)
	assert.Equal(t, time.Second, opts.SettleDelay)
	assert.Equal(t, 100*time.Millisecond, opts.PageSettle)
	assert.True(t, opts.BestEffort)
}
