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
	"github.com/zwavehost/zwdriver/valueid"
)

const (
	configurationSet            uint8 = 0x04
	configurationGet            uint8 = 0x05
	configurationReport         uint8 = 0x06
	configurationPropertiesGet  uint8 = 0x0e
	configurationPropertiesRpt  uint8 = 0x0f
)

// paramMeta is the static metadata for a single configuration parameter,
// learned from a V3 ConfigurationPropertiesReport rather than a bundled
// device database (spec §9: this port carries no product config DB).
type paramMeta struct {
	Size    uint8
	Min     int32
	Max     int32
	Default int32
}

// Configuration is COMMAND_CLASS_CONFIGURATION (0x70). Unlike the other
// classes it has no fixed parameter set: RequestState issues nothing by
// itself at the static stage because the parameter list is device-specific
// and normally resolved from an external config database this driver does
// not ship. Callers discover parameters explicitly via RequestParam/
// QueryProperties, grounded on original_source Configuration.cpp's
// RequestAllConfigParams being a no-op without a loaded config file.
type Configuration struct {
	Base

	mu     sync.Mutex
	params map[uint8]paramMeta
}

func init() {
	Default.Register(device.CommandClassConfiguration, func() CommandClass {
		return &Configuration{Base: NewBase(), params: make(map[uint8]paramMeta)}
	})
}

func (c *Configuration) ID() uint8 { return device.CommandClassConfiguration }

func (c *Configuration) valueID(index uint8) valueid.ID {
	return valueid.ID{HomeID: c.Ctx.HomeID, NodeID: c.Ctx.NodeID, Genre: valueid.GenreConfig,
		CommandClassID: c.ID(), Instance: 1, Index: index, ValueType: valueid.TypeInt}
}

func (c *Configuration) RequestState(stage Stage, instance uint8) error {
	return nil
}

// RequestParam issues CONFIGURATION_GET for a single parameter index.
func (c *Configuration) RequestParam(index uint8) error {
	return c.send(c.ID(), []uint8{configurationGet, index}, PriorityQuery)
}

// QueryProperties issues the V3 properties get for a single parameter
// index, populating its min/max/default/size metadata.
func (c *Configuration) QueryProperties(index uint8) error {
	return c.send(c.ID(), []uint8{configurationPropertiesGet, 0x00, index}, PriorityQuery)
}

// Meta returns the known static metadata for a parameter, or false if it
// has not been queried yet.
func (c *Configuration) Meta(index uint8) (paramMeta, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.params[index]
	return m, ok
}

func decodeSignedSized(b []uint8) int32 {
	switch len(b) {
	case 1:
		return int32(int8(b[0]))
	case 2:
		return int32(int16(uint16(b[0])<<8 | uint16(b[1])))
	case 4:
		return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
	default:
		return 0
	}
}

func (c *Configuration) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	switch commandID {
	case configurationReport:
		if len(payload) < 3 {
			return fmt.Errorf("configuration report too short")
		}
		index := payload[1]
		size := payload[2] & 0x07
		if len(payload) < int(3+size) {
			return fmt.Errorf("configuration report size mismatch")
		}
		v := decodeSignedSized(payload[3 : 3+size])
		c.refreshValue(c.valueID(index), fmt.Sprintf("Parameter #%d", index), v)
		return nil

	case configurationPropertiesRpt:
		if len(payload) < 4 {
			return fmt.Errorf("configuration properties report too short")
		}
		index := uint16(payload[1])<<8 | uint16(payload[2])
		size := payload[3] & 0x07
		offset := 4
		meta := paramMeta{Size: size}
		if size > 0 && len(payload) >= offset+3*int(size) {
			meta.Min = decodeSignedSized(payload[offset : offset+int(size)])
			offset += int(size)
			meta.Max = decodeSignedSized(payload[offset : offset+int(size)])
			offset += int(size)
			meta.Default = decodeSignedSized(payload[offset : offset+int(size)])
		}
		c.mu.Lock()
		c.params[uint8(index)] = meta
		c.mu.Unlock()
		return nil

	default:
		return nil
	}
}

func (c *Configuration) SetValue(v *value.Value, newPayload interface{}) error {
	val, ok := newPayload.(int32)
	if !ok {
		return fmt.Errorf("configuration SetValue expects int32")
	}
	index := v.ID.Index
	c.mu.Lock()
	meta, known := c.params[index]
	c.mu.Unlock()
	size := uint8(1)
	if known && meta.Size > 0 {
		size = meta.Size
	}
	if known && (val < meta.Min || val > meta.Max) {
		return fmt.Errorf("parameter #%d value %d out of range [%d,%d]", index, val, meta.Min, meta.Max)
	}

	v.SetLocal(val)
	c.Ctx.Notify.ValueChanged(v)

	payload := make([]uint8, 0, 3+size)
	payload = append(payload, configurationSet, index, size)
	u := uint32(val)
	for i := int(size) - 1; i >= 0; i-- {
		payload = append(payload, uint8(u>>(8*uint(i))))
	}
	return c.send(c.ID(), payload, PrioritySend)
}
