package gatt

import (
	"strconv"
	"strings"

	"github.com/go-ble/ble"
	"github.com/srg/gattwalk/internal/gatttool"
)

// Properties is the 8-bit capability mask of a characteristic declaration.
type Properties ble.Property

// propertyNames lists capabilities in bit order.
var propertyNames = []struct {
	flag ble.Property
	name string
}{
	{ble.CharBroadcast, "Broadcast"},
	{ble.CharRead, "Read"},
	{ble.CharWriteNR, "WriteNoResponse"},
	{ble.CharWrite, "Write"},
	{ble.CharNotify, "Notify"},
	{ble.CharIndicate, "Indicate"},
	{ble.CharSignedWrite, "SignedWrite"},
	{ble.CharExtended, "ExtendedProperties"},
}

// ParseProperties parses a properties octet given as hex text ("12", "0x12").
func ParseProperties(prop string) (Properties, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(prop), "0x"), 16, 8)
	if err != nil {
		return 0, &gatttool.ParseError{Line: prop, Reason: "invalid properties octet"}
	}
	return Properties(v), nil
}

// Has reports whether every bit of flag is set.
func (p Properties) Has(flag ble.Property) bool {
	return ble.Property(p)&flag == flag
}

// Readable reports whether the characteristic value may be read.
func (p Properties) Readable() bool {
	return p.Has(ble.CharRead)
}

// Names returns the names of the set capabilities in bit order.
func (p Properties) Names() []string {
	var names []string
	for _, pn := range propertyNames {
		if p.Has(pn.flag) {
			names = append(names, pn.name)
		}
	}
	return names
}

// PropertyName renders a properties octet as "<hex> = Name Name ...".
func PropertyName(prop string) (string, error) {
	p, err := ParseProperties(prop)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(prop + " = " + strings.Join(p.Names(), " ")), nil
}
