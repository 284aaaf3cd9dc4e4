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
	switchBinarySet    uint8 = 0x01
	switchBinaryGet    uint8 = 0x02
	switchBinaryReport uint8 = 0x03
)

// SwitchBinary is COMMAND_CLASS_SWITCH_BINARY (0x25): a single on/off
// value (spec end-to-end scenario S2/S3).
type SwitchBinary struct {
	Base
}

func init() {
	Default.Register(device.CommandClassSwitchBinary,
		func() CommandClass { return &SwitchBinary{Base: NewBase()} })
}

func (c *SwitchBinary) ID() uint8 { return device.CommandClassSwitchBinary }

func (c *SwitchBinary) valueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeBool}
}

func (c *SwitchBinary) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{switchBinaryGet}, PriorityQuery)
}

func (c *SwitchBinary) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != switchBinaryReport {
		return nil
	}
	if len(payload) < 1 {
		return fmt.Errorf("switch binary report too short")
	}
	c.refreshValue(c.valueID(instance), "Switch", payload[0] != 0)
	return nil
}

func (c *SwitchBinary) SetValue(v *value.Value, newPayload interface{}) error {
	on, ok := newPayload.(bool)
	if !ok {
		return fmt.Errorf("switch binary SetValue expects bool")
	}
	v.SetLocal(on)
	c.Ctx.Notify.ValueChanged(v)

	level := uint8(0x00)
	if on {
		level = 0xff
	}
	return c.send(c.ID(), []uint8{switchBinarySet, level}, PrioritySend)
}
