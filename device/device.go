// Package device holds the device-class and command-class id catalog used
// to seed a newly discovered node's mandatory command classes (spec §4.4
// step 1).
package device

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

// Basic device class.
const (
	BasicTypeController       uint8 = 0x01
	BasicTypeStaticController uint8 = 0x02
	BasicTypeSlave            uint8 = 0x03
	BasicTypeRoutingSlave     uint8 = 0x04
)

// Generic device class (selected, spec scope).
const (
	GenericTypeGenericController uint8 = 0x01
	GenericTypeStaticController  uint8 = 0x02
	GenericTypeSwitchThermostat  uint8 = 0x08
	GenericTypeSwitchBinary      uint8 = 0x10
	GenericTypeSwitchMultiLevel  uint8 = 0x11
	GenericTypeSwitchRemote      uint8 = 0x12
	GenericTypeSwitchToggle      uint8 = 0x13
	GenericTypeSensorBinary      uint8 = 0x20
	GenericTypeSensorMultiLevel  uint8 = 0x21
	GenericTypeMeterPulse        uint8 = 0x30
	GenericTypeMeter             uint8 = 0x31
	GenericTypeEntryControl      uint8 = 0x40
)

// Command class ids. Only the ~20 wired into the cc package have a
// registered factory; the rest are recognized here for NodeInfo decoding
// (spec §4.4 step 2) even without a handler, matching the spec's
// UnsupportedCommandClass behavior (log-and-drop, §7).
const (
	CommandClassNoOperation            uint8 = 0x00
	CommandClassBasic                  uint8 = 0x20
	CommandClassControllerReplication  uint8 = 0x21
	CommandClassSwitchBinary           uint8 = 0x25
	CommandClassSwitchMultilevel       uint8 = 0x26
	CommandClassSwitchAll              uint8 = 0x27
	CommandClassSensorBinary           uint8 = 0x30
	CommandClassSensorMultilevel       uint8 = 0x31
	CommandClassMeter                  uint8 = 0x32
	CommandClassColorSwitch            uint8 = 0x33
	CommandClassMeterPulse             uint8 = 0x35
	CommandClassAssociationGroupInfo   uint8 = 0x59
	CommandClassZwavePlusInfo          uint8 = 0x5e
	CommandClassUserCode               uint8 = 0x63
	CommandClassConfiguration          uint8 = 0x70
	CommandClassAlarm                  uint8 = 0x71
	CommandClassManufacturerSpecific   uint8 = 0x72
	CommandClassFirmwareUpdateMeta     uint8 = 0x73
	CommandClassProtection             uint8 = 0x75
	CommandClassNodeNaming             uint8 = 0x77
	CommandClassBattery                uint8 = 0x80
	CommandClassClock                  uint8 = 0x81
	CommandClassWakeUp                 uint8 = 0x84
	CommandClassAssociation            uint8 = 0x85
	CommandClassVersion                uint8 = 0x86
	CommandClassIndicator              uint8 = 0x87
	CommandClassMultiInstance          uint8 = 0x60

	// CommandClassMark (0xef) terminates the supported-class list; classes
	// after it are controlled, not supported (Glossary).
	CommandClassMark uint8 = 0xef
)

// MandatoryCommandClasses maps a generic device type to the command class
// ids a conformant device of that type is always expected to implement
// (spec §4.4 step 1). The ProtocolInfo stage seeds a node's command class
// table from this catalog before the NodeInfo stage's ApplicationUpdate
// ever arrives, so a class central to the device's own type (e.g.
// SWITCH_BINARY on a binary switch) is available even if a sleeping node's
// first NodeInfo round trip is slow to land; the later NodeInfo step still
// reconciles against the device's self-reported list, the authoritative
// source for anything this catalog does not cover.
var MandatoryCommandClasses = map[uint8][]uint8{
	GenericTypeSwitchBinary:     {CommandClassSwitchBinary},
	GenericTypeSwitchMultiLevel: {CommandClassSwitchMultilevel},
	GenericTypeSensorBinary:     {CommandClassSensorBinary},
	GenericTypeSensorMultiLevel: {CommandClassSensorMultilevel},
	GenericTypeMeter:            {CommandClassMeter},
	GenericTypeMeterPulse:       {CommandClassMeterPulse},
}
