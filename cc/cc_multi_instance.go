package cc

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
	"fmt"
	"sync"

	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
)

const (
	multiInstanceGet    uint8 = 0x04
	multiInstanceReport uint8 = 0x05

	// MultiInstanceEncapCommandID is MULTI_INSTANCE_CMD_ENCAP, recognized
	// by the node dispatcher before ordinary per-class HandleMsg routing.
	MultiInstanceEncapCommandID uint8 = 0x06
)

// MultiInstance is COMMAND_CLASS_MULTI_INSTANCE (0x60, v1 form). It has no
// values of its own: it discovers how many instances of each other command
// class the node exposes, and the node's dispatcher uses
// EncapsulateV1/DecapsulateV1 to route per-instance traffic.
type MultiInstance struct {
	Base

	mu          sync.Mutex
	onInstances func(commandClassID uint8, count uint8)
}

func init() {
	Default.Register(device.CommandClassMultiInstance,
		func() CommandClass { return &MultiInstance{Base: NewBase()} })
}

func (c *MultiInstance) ID() uint8 { return device.CommandClassMultiInstance }

// SetInstanceCountCallback installs the hook the owning node binds to
// apply a discovered instance count onto the matching CommandClass.
func (c *MultiInstance) SetInstanceCountCallback(fn func(commandClassID uint8, count uint8)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInstances = fn
}

func (c *MultiInstance) RequestState(stage Stage, instance uint8) error {
	return nil
}

// QueryInstanceCount issues MULTI_INSTANCE_GET for a single command class.
func (c *MultiInstance) QueryInstanceCount(commandClassID uint8) error {
	return c.send(c.ID(), []uint8{multiInstanceGet, commandClassID}, PriorityQuery)
}

func (c *MultiInstance) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != multiInstanceReport {
		return nil
	}
	if len(payload) < 3 {
		return fmt.Errorf("multi instance report too short")
	}
	commandClassID := payload[1]
	count := payload[2]

	c.mu.Lock()
	cb := c.onInstances
	c.mu.Unlock()
	if cb != nil {
		cb(commandClassID, count)
	}
	return nil
}

func (c *MultiInstance) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("multi instance has no values")
}

// EncapsulateV1 wraps an outgoing command class payload for delivery to a
// specific instance, per MULTI_INSTANCE_CMD_ENCAP.
func EncapsulateV1(instance uint8, commandClassID uint8, inner []uint8) []uint8 {
	out := make([]uint8, 0, 3+len(inner))
	out = append(out, MultiInstanceEncapCommandID, instance, commandClassID)
	out = append(out, inner...)
	return out
}

// DecapsulateV1 unwraps an inbound MULTI_INSTANCE_CMD_ENCAP payload
// (commandID already stripped by the dispatcher), returning the target
// instance, the inner command class id, and its payload.
func DecapsulateV1(payload []uint8) (instance uint8, commandClassID uint8, inner []uint8, err error) {
	if len(payload) < 2 {
		return 0, 0, nil, fmt.Errorf("multi instance encapsulation too short")
	}
	return payload[0], payload[1], payload[2:], nil
}
