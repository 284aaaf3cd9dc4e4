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
	batteryGet    uint8 = 0x02
	batteryReport uint8 = 0x03

	batteryLow uint8 = 0xff
)

// Battery is COMMAND_CLASS_BATTERY (0x80): read-only percentage, with the
// 0xff "low battery" warning published as level 0 rather than 255%.
type Battery struct {
	Base
}

func init() {
	Default.Register(device.CommandClassBattery,
		func() CommandClass { return &Battery{Base: NewBase()} })
}

func (c *Battery) ID() uint8 { return device.CommandClassBattery }

func (c *Battery) valueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeByte}
}

func (c *Battery) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{batteryGet}, PriorityQuery)
}

func (c *Battery) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != batteryReport {
		return nil
	}
	if len(payload) < 1 {
		return fmt.Errorf("battery report too short")
	}
	level := payload[0]
	if level == batteryLow {
		level = 0
	}
	v := c.refreshValue(c.valueID(instance), "Battery Level", level)
	v.ReadOnly = true
	v.Units = "%"
	return nil
}

func (c *Battery) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("battery is read only")
}
