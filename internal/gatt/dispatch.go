package gatt

import (
	"context"
	"strings"

	"github.com/srg/gattwalk/internal/gatttool"
)

// Decoded is the description and rendered value of one attribute.
type Decoded struct {
	Description string
	Value       string
}

// valueDecoder renders the value stored at a handle.
type valueDecoder func(r *Reader, ctx context.Context, handle string) (string, error)

// characteristicValueDecoders selects a decoder by characteristic value UUID.
// A nil decoder means the characteristic is described but not read.
var characteristicValueDecoders = map[string]valueDecoder{
	UUIDDeviceName:          (*Reader).ReadString,
	UUIDAppearance:          (*Reader).ReadAppearance,
	UUIDPreferredConnection: (*Reader).ReadConnectionParameters,
	// Service Changed is indicated, not read.
	UUIDServiceChanged:   nil,
	UUIDModelNumber:      (*Reader).ReadString,
	UUIDSerialNumber:     (*Reader).ReadString,
	UUIDFirmwareRevision: (*Reader).ReadString,
	UUIDHardwareRevision: (*Reader).ReadString,
	UUIDSoftwareRevision: (*Reader).ReadString,
	UUIDManufacturer:     (*Reader).ReadString,
}

// DecodeAttributeService decodes the attribute-type entries of the table:
// service and include declarations, characteristic declarations and user
// description descriptors. Other UUIDs yield the zero Decoded.
func (r *Reader) DecodeAttributeService(ctx context.Context, handle, uuid string) (Decoded, error) {
	uuid = gatttool.NormalizeUUID(uuid)
	switch uuid {
	case UUIDPrimaryService, UUIDSecondaryService, UUIDInclude:
		value, err := r.decodeServiceValue(ctx, handle)
		return Decoded{Description: attributeNames[uuid], Value: value}, err
	case UUIDCharacteristic:
		c, err := r.ReadCharacteristic(ctx, handle)
		return Decoded{Description: attributeNames[uuid], Value: c.String()}, err
	case UUIDUserDescription:
		value, err := r.ReadString(ctx, handle)
		return Decoded{Description: attributeNames[uuid], Value: value}, err
	}
	return Decoded{}, nil
}

// decodeServiceValue reads the service UUID a declaration refers to and tags
// it with the profile name, e.g. "access profile uuid:0x1800".
func (r *Reader) decodeServiceValue(ctx context.Context, handle string) (string, error) {
	uuid, err := r.ReadUUID(ctx, handle)
	if err != nil {
		return "", err
	}
	name, ok := serviceProfiles[strings.TrimPrefix(uuid, "0x")]
	if !ok {
		name = UnknownName
	}
	return name + " uuid:" + uuid, nil
}

// DecodeCharacteristicValue decodes a characteristic value by its UUID.
// Unrecognized UUIDs are described as "unknown" and rendered as hex.
func (r *Reader) DecodeCharacteristicValue(ctx context.Context, handle, uuid string) (Decoded, error) {
	uuid = gatttool.NormalizeUUID(uuid)
	decode, known := characteristicValueDecoders[uuid]
	if !known {
		value, err := r.ReadHex(ctx, handle)
		return Decoded{Description: UnknownName, Value: value}, err
	}
	d := Decoded{Description: attributeNames[uuid]}
	if decode == nil {
		return d, nil
	}
	value, err := decode(r, ctx, handle)
	d.Value = value
	return d, err
}
