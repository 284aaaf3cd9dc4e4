// Package value implements the typed leaf Value object published to the
// application, and its owning ValueStore (spec §3).
package value

/*
Copyright (C) 2017 Jan Kasiak

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

import (
	"sync"

	"github.com/zwavehost/zwdriver/valueid"
)

// ListItem is one entry of a List-typed Value's item table.
type ListItem struct {
	Label string
	Value int32
}

// Value is a leaf of state published to the application. It is owned by a
// ValueStore; command classes mutate it under the owning Node's lock and the
// driver publishes ValueAdded/ValueChanged/ValueRefreshed notifications for
// each transition.
type Value struct {
	ID ID

	mu sync.Mutex

	Label         string
	Units         string
	ReadOnly      bool
	WriteOnly     bool
	PollIntensity uint8
	Min           int32
	Max           int32

	isSet   bool
	payload interface{}
	items   []ListItem // only meaningful for valueid.TypeList

	// checking is a shadow value used to debounce a spurious report: a
	// SetValue optimistically writes payload, and a later device report
	// that echoes the same value does not re-fire ValueChanged.
	checking      interface{}
	checkingValid bool
}

// ID is a type alias for valueid.ID (the same type, not a distinct one),
// so callers can write value.ID{...} interchangeably with valueid.ID{...}.
type ID = valueid.ID

// New creates a Value that is not yet set (IsSet() == false) until the
// first SetLocal or Refresh call, matching OpenZWave's "m_value" semantics for freshly
// discovered values awaiting their initial report.
func New(id ID, label string) *Value {
	return &Value{ID: id, Label: label}
}

// IsSet reports whether the value has ever been assigned a payload.
func (v *Value) IsSet() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.isSet
}

// Raw returns the current payload and whether it has ever been set.
func (v *Value) Raw() (interface{}, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.payload, v.isSet
}

// Items returns a copy of the List item table.
func (v *Value) Items() []ListItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]ListItem, len(v.items))
	copy(out, v.items)
	return out
}

// SetItems installs the List item table (static stage population).
func (v *Value) SetItems(items []ListItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = items
}

// SetLocal optimistically applies a local write (consumer SetValue call).
// It always marks the value set and returns nothing; the caller emits
// ValueChanged immediately itself. Remote confirmation arrives later via
// Refresh (spec §5 ordering guarantee: "observable to subsequent reads ...
// immediately").
func (v *Value) SetLocal(payload interface{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.payload = payload
	v.isSet = true
	v.checking = payload
	v.checkingValid = true
}

// Refresh applies a payload received from the device. It returns
// (changed, refreshedSameValue): changed is true the first time the value
// is set or whenever the payload differs from the current one;
// refreshedSameValue is true when the payload matches the last value
// exactly, and should be published as ValueRefreshed rather than
// ValueChanged (spec §3 Value "checking-change" shadow).
func (v *Value) Refresh(payload interface{}) (changed bool, refreshedSameValue bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	wasSet := v.isSet
	prev := v.payload

	v.payload = payload
	v.isSet = true

	if !wasSet {
		v.checking = payload
		v.checkingValid = true
		return true, false
	}

	if prev == payload {
		return false, true
	}

	v.checking = payload
	v.checkingValid = true
	return true, false
}
