// Package valueid defines the globally unique locator for a Value (spec §3).
package valueid

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

import "fmt"

// Genre classifies a Value's visibility to the application.
type Genre uint8

const (
	GenreBasic Genre = iota
	GenreUser
	GenreConfig
	GenreSystem
)

func (g Genre) String() string {
	switch g {
	case GenreBasic:
		return "Basic"
	case GenreUser:
		return "User"
	case GenreConfig:
		return "Config"
	case GenreSystem:
		return "System"
	default:
		return "Unknown"
	}
}

// Type is the scalar payload kind carried by a Value.
type Type uint8

const (
	TypeBool Type = iota
	TypeByte
	TypeShort
	TypeInt
	TypeDecimal
	TypeList
	TypeString
	TypeButton
	TypeRaw
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "Bool"
	case TypeByte:
		return "Byte"
	case TypeShort:
		return "Short"
	case TypeInt:
		return "Int"
	case TypeDecimal:
		return "Decimal"
	case TypeList:
		return "List"
	case TypeString:
		return "String"
	case TypeButton:
		return "Button"
	case TypeRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// ID is the globally unique Value locator:
// (HomeId, NodeId, Genre, CommandClassId, Instance, Index, Type).
type ID struct {
	HomeID         uint32
	NodeID         uint8
	Genre          Genre
	CommandClassID uint8
	Instance       uint8
	Index          uint8
	ValueType      Type
}

// String gives a stable textual key, usable as a map key or log field.
func (id ID) String() string {
	return fmt.Sprintf("%08x:%d:%s:%02x:%d:%d:%s",
		id.HomeID, id.NodeID, id.Genre, id.CommandClassID, id.Instance, id.Index, id.ValueType)
}
