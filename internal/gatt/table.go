package gatt

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// AttributeTable maps attribute handles to UUIDs in discovery order.
type AttributeTable struct {
	entries *orderedmap.OrderedMap[string, string]
}

// NewAttributeTable creates an empty table.
func NewAttributeTable() *AttributeTable {
	return &AttributeTable{entries: orderedmap.New[string, string]()}
}

// Set records uuid for handle and reports whether the handle is new.
// An existing handle keeps its position.
func (t *AttributeTable) Set(handle, uuid string) bool {
	_, present := t.entries.Set(handle, uuid)
	return !present
}

// Get returns the UUID recorded for handle.
func (t *AttributeTable) Get(handle string) (string, bool) {
	return t.entries.Get(handle)
}

// Len returns the number of attributes.
func (t *AttributeTable) Len() int {
	return t.entries.Len()
}

// Handles returns the handles in discovery order.
func (t *AttributeTable) Handles() []string {
	handles := make([]string, 0, t.entries.Len())
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		handles = append(handles, pair.Key)
	}
	return handles
}

// Each calls fn for every attribute in discovery order, stopping at the first error.
func (t *AttributeTable) Each(fn func(handle, uuid string) error) error {
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}

// CharacteristicTable maps value handles ("0x"-prefixed) to their declarations
// in the order the declarations appear in the attribute table.
type CharacteristicTable struct {
	entries *orderedmap.OrderedMap[string, Characteristic]
}

// NewCharacteristicTable creates an empty table.
func NewCharacteristicTable() *CharacteristicTable {
	return &CharacteristicTable{entries: orderedmap.New[string, Characteristic]()}
}

// Set records the declaration for a value handle.
func (t *CharacteristicTable) Set(valueHandle string, c Characteristic) {
	t.entries.Set(valueHandle, c)
}

// Get returns the declaration recorded for a value handle.
func (t *CharacteristicTable) Get(valueHandle string) (Characteristic, bool) {
	return t.entries.Get(valueHandle)
}

// Len returns the number of characteristics.
func (t *CharacteristicTable) Len() int {
	return t.entries.Len()
}

// Each calls fn for every characteristic in order, stopping at the first error.
func (t *CharacteristicTable) Each(fn func(valueHandle string, c Characteristic) error) error {
	for pair := t.entries.Oldest(); pair != nil; pair = pair.Next() {
		if err := fn(pair.Key, pair.Value); err != nil {
			return err
		}
	}
	return nil
}
