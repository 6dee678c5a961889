package gatt

import (
	"context"
	"time"

	"github.com/srg/gattwalk/internal/gatttool"
	"github.com/srg/gattwalk/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// GattSuite drives the discovery core against a simulated gatttool.
type GattSuite struct {
	suite.Suite
	helper *testutils.TestHelper
}

func (s *GattSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
}

// deviceInformationPeripheral has 15 attributes across three services.
func deviceInformationPeripheral() *testutils.PeripheralBuilder {
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

// open starts a session on console; it connects unless connect is false.
func (s *GattSuite) open(console gatttool.Console, connect bool) *gatttool.Session {
	session := gatttool.NewSession(console, &gatttool.SessionOptions{
		ResponseTimeout: time.Second,
		Logger:          s.helper.Logger,
	})
	_, err := session.Expect(context.Background(), gatttool.PromptMarker)
	s.Require().NoError(err, "initial prompt MUST appear")
	if connect {
		s.Require().NoError(gatttool.Connect(context.Background(), session, testutils.DefaultPeripheralAddress), "connect MUST succeed")
	}
	return session
}

// commandsWithPrefix filters the recorded command lines.
func commandsWithPrefix(commands []string, prefix string) []string {
	var out []string
	for _, c := range commands {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			out = append(out, c)
		}
	}
	return out
}
