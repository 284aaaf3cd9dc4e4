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

	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
	"github.com/zwavehost/zwdriver/valueid"
)

const (
	protectionSet    uint8 = 0x01
	protectionGet    uint8 = 0x02
	protectionReport uint8 = 0x03
)

// Protection levels (v1).
const (
	ProtectionUnprotected    uint8 = 0x00
	ProtectionSequence       uint8 = 0x01
	ProtectionNoOperation    uint8 = 0x02
)

// Protection is COMMAND_CLASS_PROTECTION (0x75): a local-control lockout
// level (e.g. disable the physical switch).
type Protection struct {
	Base
}

func init() {
	Default.Register(device.CommandClassProtection,
		func() CommandClass { return &Protection{Base: NewBase()} })
}

func (c *Protection) ID() uint8 { return device.CommandClassProtection }

func (c *Protection) valueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreSystem,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeList}
}

func (c *Protection) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{protectionGet}, PriorityQuery)
}

func (c *Protection) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != protectionReport {
		return nil
	}
	if len(payload) < 1 {
		return fmt.Errorf("protection report too short")
	}
	v := c.refreshValue(c.valueID(instance), "Protection", int32(payload[0]))
	v.SetItems([]value.ListItem{
		{Label: "Unprotected", Value: int32(ProtectionUnprotected)},
		{Label: "Protection by Sequence", Value: int32(ProtectionSequence)},
		{Label: "No Operation Possible", Value: int32(ProtectionNoOperation)},
	})
	return nil
}

func (c *Protection) SetValue(v *value.Value, newPayload interface{}) error {
	level, ok := newPayload.(int32)
	if !ok {
		return fmt.Errorf("protection SetValue expects int32")
	}
	v.SetLocal(level)
	c.Ctx.Notify.ValueChanged(v)
	return c.send(c.ID(), []uint8{protectionSet, uint8(level)}, PrioritySend)
}
