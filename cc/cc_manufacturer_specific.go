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
	"sync"

	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/value"
)

const (
	manufacturerSpecificGet    uint8 = 0x04
	manufacturerSpecificReport uint8 = 0x05
)

// ManufacturerSpecific is COMMAND_CLASS_MANUFACTURER_SPECIFIC (0x72): the
// (ManufacturerId, ProductType, ProductId) triple used to look up a device
// in a configuration database (spec §4.4 step 2, out of scope beyond the
// raw ids themselves — no bundled database ships with this driver).
type ManufacturerSpecific struct {
	Base

	mu               sync.Mutex
	ManufacturerID   uint16
	ProductType      uint16
	ProductID        uint16
}

func init() {
	Default.Register(device.CommandClassManufacturerSpecific,
		func() CommandClass { return &ManufacturerSpecific{Base: NewBase()} })
}

func (c *ManufacturerSpecific) ID() uint8 { return device.CommandClassManufacturerSpecific }

func (c *ManufacturerSpecific) RequestState(stage Stage, instance uint8) error {
	if stage != StageStatic {
		return nil
	}
	return c.send(c.ID(), []uint8{manufacturerSpecificGet}, PriorityQuery)
}

func (c *ManufacturerSpecific) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != manufacturerSpecificReport {
		return nil
	}
	if len(payload) < 7 {
		return fmt.Errorf("manufacturer specific report too short")
	}
	c.mu.Lock()
	c.ManufacturerID = binary.BigEndian.Uint16(payload[1:3])
	c.ProductType = binary.BigEndian.Uint16(payload[3:5])
	c.ProductID = binary.BigEndian.Uint16(payload[5:7])
	c.mu.Unlock()
	return nil
}

func (c *ManufacturerSpecific) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("manufacturer specific is read only")
}
