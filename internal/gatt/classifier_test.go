package gatt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributeName(t *testing.T) {
	documented := map[string]string{
		"1800": "access profile",
		"1801": "attribute profile",
		"2800": "primary service",
		"2801": "secondary service",
		"2802": "include",
		"2803": "characteristic",
		"2901": "description",
		"2902": "client char config",
		"2a00": "name",
		"2a01": "appearance",
		"2a04": "preferred connection",
		"2a05": "service changed",
		"2a24": "model number",
		"2a25": "serial number",
		"2a26": "firmware revision",
		"2a27": "hardware revision",
		"2a28": "software revision",
		"2a29": "manufacturer",
	}

	for uuid, name := range documented {
		t.Run(uuid, func(t *testing.T) {
			assert.Equal(t, name, AttributeName(uuid))
			assert.Equal(t, name, AttributeName("0x"+uuid), "0x prefix MUST NOT affect the result")
			assert.Equal(t, name, AttributeName(strings.ToUpper(uuid)), "case MUST NOT affect the result")
		})
	}
}

func TestAttributeName_Unknown(t *testing.T) {
	for _, uuid := range []string{"180a", "0x2a19", "2A37", "ffff", "", "6e400001-b5a3-f393-e0a9-e50e24dcca9e"} {
		assert.Equal(t, UnknownName, AttributeName(uuid), "uuid %q", uuid)
	}
}

func TestAttributeName_SigBaseUUID(t *testing.T) {
	assert.Equal(t, "name", AttributeName("00002A00-0000-1000-8000-00805F9B34FB"))
}
