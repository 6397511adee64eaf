// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package keypin

// PinStore is the read surface of the externally owned pin configuration.
// LookupPin returns the configured pin and true, or "" and false when no pin
// is configured. Implementations must return a consistent snapshot even when
// the pin is updated concurrently.
type PinStore interface {
	LookupPin() (string, bool)
}

// PinStoreFunc adapts a function to the PinStore interface.
type PinStoreFunc func() (string, bool)

// LookupPin calls f.
func (f PinStoreFunc) LookupPin() (string, bool) {
	return f()
}

// StaticPin is a PinStore that always returns the same configured pin.
type StaticPin string

// LookupPin returns the pin and true.
func (p StaticPin) LookupPin() (string, bool) {
	return string(p), true
}

// NoPin is a PinStore with no pin configured.
var NoPin PinStore = PinStoreFunc(func() (string, bool) { return "", false })

// snapshotPin reads the store once and returns the pin in the form Verify expects.
func snapshotPin(store PinStore) *string {
	pin, ok := store.LookupPin()
	if !ok {
		return nil
	}
	return &pin
}
