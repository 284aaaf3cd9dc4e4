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
	switchMultilevelSet    uint8 = 0x01
	switchMultilevelGet    uint8 = 0x02
	switchMultilevelReport uint8 = 0x03
)

// SwitchMultilevel is COMMAND_CLASS_SWITCH_MULTILEVEL (0x26): a 0-99 dim
// level, 255 meaning "last on level".
type SwitchMultilevel struct {
	Base
}

func init() {
	Default.Register(device.CommandClassSwitchMultilevel,
		func() CommandClass { return &SwitchMultilevel{Base: NewBase()} })
}

func (c *SwitchMultilevel) ID() uint8 { return device.CommandClassSwitchMultilevel }

func (c *SwitchMultilevel) valueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeByte}
}

func (c *SwitchMultilevel) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{switchMultilevelGet}, PriorityQuery)
}

func (c *SwitchMultilevel) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != switchMultilevelReport {
		return nil
	}
	if len(payload) < 1 {
		return fmt.Errorf("switch multilevel report too short")
	}
	c.refreshValue(c.valueID(instance), "Level", payload[0])
	return nil
}

func (c *SwitchMultilevel) SetValue(v *value.Value, newPayload interface{}) error {
	level, ok := newPayload.(uint8)
	if !ok {
		return fmt.Errorf("switch multilevel SetValue expects uint8")
	}
	if level > 99 && level != 255 {
		return fmt.Errorf("level out of range: %d", level)
	}
	v.SetLocal(level)
	c.Ctx.Notify.ValueChanged(v)
	return c.send(c.ID(), []uint8{switchMultilevelSet, level}, PrioritySend)
}
