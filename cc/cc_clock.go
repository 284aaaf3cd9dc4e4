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
)

const (
	clockSet    uint8 = 0x04
	clockGet    uint8 = 0x05
	clockReport uint8 = 0x06
)

// Clock is COMMAND_CLASS_CLOCK (0x81): lets the controller correct a node's
// day-of-week/hour/minute so schedule-driven behavior stays aligned.
type Clock struct {
	Base
}

func init() {
	Default.Register(device.CommandClassClock,
		func() CommandClass { return &Clock{Base: NewBase()} })
}

func (c *Clock) ID() uint8 { return device.CommandClassClock }

func (c *Clock) RequestState(stage Stage, instance uint8) error {
	if stage != StageDynamic {
		return nil
	}
	return c.send(c.ID(), []uint8{clockGet}, PriorityQuery)
}

func (c *Clock) HandleMsg(commandID uint8, payload []uint8, instance uint8) error {
	if commandID != clockReport {
		return nil
	}
	// The day-of-week/hour/minute report is accepted without being decoded
	// or logged; no consumer-facing Value is published for it.
	return nil
}

// SetTime issues CLOCK_SET with weekday (1=Monday..7=Sunday), hour (0-23)
// and minute (0-59).
func (c *Clock) SetTime(weekday, hour, minute uint8) error {
	if hour > 23 || minute > 59 || weekday < 1 || weekday > 7 {
		return fmt.Errorf("clock time out of range")
	}
	return c.send(c.ID(), []uint8{clockSet, (weekday << 5) | hour, minute}, PrioritySend)
}

func (c *Clock) SetValue(v *value.Value, newPayload interface{}) error {
	return fmt.Errorf("clock is modified via SetTime, not SetValue")
}
