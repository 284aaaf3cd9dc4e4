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
	basicSet    uint8 = 0x01
	basicGet    uint8 = 0x02
	basicReport uint8 = 0x03
)

// Basic is COMMAND_CLASS_BASIC (0x20): the lowest-common-denominator
// on/off/level value every node is expected to map onto its real class.
type Basic struct {
	Base
}

func init() {
	Default.Register(device.CommandClassBasic, func() CommandClass { return &Basic{Base: NewBase()} })
}

func (c *Basic) ID() uint8 { return device.CommandClassBasic }

func (c *Basic) valueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreBasic,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeByte}
}

func (c *Basic) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{basicGet}, PriorityQuery)
}

func (c *Basic) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != basicReport {
		return nil
	}
	if len(payload) < 1 {
		return fmt.Errorf("basic report too short")
	}
	c.refreshValue(c.valueID(instance), "Basic", payload[0])
	return nil
}

func (c *Basic) SetValue(v *value.Value, newPayload interface{}) error {
	level, ok := newPayload.(uint8)
	if !ok {
		return fmt.Errorf("basic SetValue expects uint8")
	}
	v.SetLocal(level)
	c.Ctx.Notify.ValueChanged(v)
	return c.send(c.ID(), []uint8{basicSet, level}, PrioritySend)
}
