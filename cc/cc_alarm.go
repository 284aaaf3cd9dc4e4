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
	alarmGet    uint8 = 0x04
	alarmReport uint8 = 0x05
)

// Alarm is COMMAND_CLASS_ALARM (0x71), the v1 form (also known later as
// Notification). It publishes one (type, level) pair per report; this port
// does not decode v2+ event parameters.
type Alarm struct {
	Base
}

func init() {
	Default.Register(device.CommandClassAlarm,
		func() CommandClass { return &Alarm{Base: NewBase()} })
}

func (c *Alarm) ID() uint8 { return device.CommandClassAlarm }

func (c *Alarm) typeValueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeByte}
}

func (c *Alarm) levelValueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: 1, ValueType: valueid.TypeByte}
}

func (c *Alarm) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{alarmGet, 0x00}, PriorityQuery)
}

func (c *Alarm) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != alarmReport {
		return nil
	}
	if len(payload) < 3 {
		return fmt.Errorf("alarm report too short")
	}
	level := payload[1]
	alarmType := payload[2]
	c.refreshValue(c.typeValueID(instance), "Alarm Type", alarmType).ReadOnly = true
	c.refreshValue(c.levelValueID(instance), "Alarm Level", level).ReadOnly = true
	return nil
}

func (c *Alarm) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("alarm is read only")
}
