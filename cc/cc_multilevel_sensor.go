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
	"encoding/binary"
	"fmt"

	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
	"github.com/zwavehost/zwdriver/valueid"
)

const (
	sensorMultilevelGet    uint8 = 0x04
	sensorMultilevelReport uint8 = 0x05
)

// SensorMultilevel is COMMAND_CLASS_SENSOR_MULTILEVEL (0x31): a scaled
// decimal reading (temperature, luminance, etc). Precision/scale/size are
// packed into the first report byte per the Z-Wave spec; RequestState
// issues one get with no sensor-type filter, matching a single-sensor
// device. Multi-sensor devices (several Index values) are out of scope of
// this trimmed command-class set.
type SensorMultilevel struct {
	Base
}

func init() {
	Default.Register(device.CommandClassSensorMultilevel,
		func() CommandClass { return &SensorMultilevel{Base: NewBase()} })
}

func (c *SensorMultilevel) ID() uint8 { return device.CommandClassSensorMultilevel }

func (c *SensorMultilevel) valueID(instance uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreUser,
		CommandClassID: c.ID(), Instance: instance, Index: 0, ValueType: valueid.TypeDecimal}
}

func (c *SensorMultilevel) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{sensorMultilevelGet}, PriorityQuery)
}

func (c *SensorMultilevel) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != sensorMultilevelReport {
		return nil
	}
	if len(payload) < 2 {
		return fmt.Errorf("sensor multilevel report too short")
	}

	precision := (payload[1] >> 5) & 0x07
	size := payload[1] & 0x07
	if len(payload) < int(2+size) {
		return fmt.Errorf("sensor multilevel report size mismatch")
	}

	var raw int32
	switch size {
	case 1:
		raw = int32(int8(payload[2]))
	case 2:
		raw = int32(int16(binary.BigEndian.Uint16(payload[2:4])))
	case 4:
		raw = int32(binary.BigEndian.Uint32(payload[2:6]))
	default:
		return fmt.Errorf("bad sensor multilevel size: %d", size)
	}

	scale := float64(1)
	for i := uint8(0); i < precision; i++ {
		scale *= 10
	}

	v := c.refreshValue(c.valueID(instance), "Sensor", float64(raw)/scale)
	v.ReadOnly = true
	return nil
}

func (c *SensorMultilevel) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("sensor multilevel is read only")
}
