package gatt

import "github.com/srg/gattwalk/internal/gatttool"

// Well-known 16-bit UUIDs (normalized: lowercase, no 0x prefix)
const (
	// GATT services
	UUIDGenericAccess    = "1800"
	UUIDGenericAttribute = "1801"

	// GATT attribute types
	UUIDPrimaryService   = "2800"
	UUIDSecondaryService = "2801"
	UUIDInclude          = "2802"
	UUIDCharacteristic   = "2803"

	// GATT characteristic descriptors
	UUIDUserDescription = "2901"
	UUIDClientConfig    = "2902"

	// GATT characteristic values
	UUIDDeviceName          = "2a00"
	UUIDAppearance          = "2a01"
	UUIDPreferredConnection = "2a04"
	UUIDServiceChanged      = "2a05"
	UUIDModelNumber         = "2a24"
	UUIDSerialNumber        = "2a25"
	UUIDFirmwareRevision    = "2a26"
	UUIDHardwareRevision    = "2a27"
	UUIDSoftwareRevision    = "2a28"
	UUIDManufacturer        = "2a29"
)

// UnknownName is returned by AttributeName for UUIDs outside the table.
const UnknownName = "unknown"

var attributeNames = map[string]string{
	UUIDGenericAccess:    "access profile",
	UUIDGenericAttribute: "attribute profile",

	UUIDPrimaryService:   "primary service",
	UUIDSecondaryService: "secondary service",
	UUIDInclude:          "include",
	UUIDCharacteristic:   "characteristic",

	UUIDUserDescription: "description",
	UUIDClientConfig:    "client char config",

	UUIDDeviceName:          "name",
	UUIDAppearance:          "appearance",
	UUIDPreferredConnection: "preferred connection",
	UUIDServiceChanged:      "service changed",
	UUIDModelNumber:         "model number",
	UUIDSerialNumber:        "serial number",
	UUIDFirmwareRevision:    "firmware revision",
	UUIDHardwareRevision:    "hardware revision",
	UUIDSoftwareRevision:    "software revision",
	UUIDManufacturer:        "manufacturer",
}

// AttributeName returns the human-readable category of a 16-bit UUID.
// The 0x prefix and letter case are ignored; unknown UUIDs yield "unknown".
func AttributeName(uuid string) string {
	if name, ok := attributeNames[gatttool.NormalizeUUID(uuid)]; ok {
		return name
	}
	return UnknownName
}

// serviceProfiles are the services a service declaration value is tagged with.
var serviceProfiles = map[string]string{
	UUIDGenericAccess:    attributeNames[UUIDGenericAccess],
	UUIDGenericAttribute: attributeNames[UUIDGenericAttribute],
}
