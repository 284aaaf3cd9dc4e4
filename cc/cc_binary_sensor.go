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
	sensorBinaryGet    uint8 = 0x02
	sensorBinaryReport uint8 = 0x03
)

// SensorBinary is COMMAND_CLASS_SENSOR_BINARY (0x30): a read-only tripped
// flag (motion, door/window, etc).
type SensorBinary struct {
	Base
}

func init() {
	Default.Register(device.CommandClassSensorBinary,
		func() CommandClass { return &SensorBinary{Base: NewBase()} })
}

func (c *SensorBinary) ID() uint8 { return device.CommandClassSensorBinary }

func (c *SensorBinary) valueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeBool}
}

func (c *SensorBinary) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{sensorBinaryGet}, PriorityQuery)
}

func (c *SensorBinary) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != sensorBinaryReport {
		return nil
	}
	if len(payload) < 1 {
		return fmt.Errorf("sensor binary report too short")
	}
	v := c.refreshValue(c.valueID(instance), "Sensor", payload[0] != 0)
	v.ReadOnly = true
	return nil
}

func (c *SensorBinary) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("sensor binary is read only")
}
