package proto

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

	"github.com/zwavehost/zwdriver/frame"
)

func simpleRequest(funcID uint8) *frame.Frame {
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest, MessageType: funcID}
	if err := f.Update(); err != nil {
		panic(fmt.Sprintf("simpleRequest should never fail: %v", err))
	}
	return &f
}

// GetVersionRequest builds a GET_VERSION request.
func GetVersionRequest() *frame.Frame { return simpleRequest(FuncGetVersion) }

// MemoryGetIDRequest builds a ZW_MEMORY_GET_ID request.
func MemoryGetIDRequest() *frame.Frame { return simpleRequest(FuncMemoryGetID) }

// SerialAPIGetInitDataRequest builds a SERIAL_API_GET_INIT_DATA request.
func SerialAPIGetInitDataRequest() *frame.Frame { return simpleRequest(FuncSerialAPIGetInitData) }

// SerialAPIGetCapabilitiesRequest builds a SERIAL_API_GET_CAPABILITIES request.
func SerialAPIGetCapabilitiesRequest() *frame.Frame {
	return simpleRequest(FuncSerialAPIGetCapabilities)
}

// SerialAPISoftResetRequest builds a SERIAL_API_SOFT_RESET request.
func SerialAPISoftResetRequest() *frame.Frame { return simpleRequest(FuncSerialAPISoftReset) }

// GetControllerCapabilitiesRequest builds a ZW_GET_CONTROLLER_CAPABILITIES request.
func GetControllerCapabilitiesRequest() *frame.Frame {
	return simpleRequest(FuncGetControllerCapabilities)
}

func nodeRequest(funcID uint8, nodeID uint8) (*frame.Frame, error) {
	if !IsValidNodeID(nodeID) {
		return nil, fmt.Errorf("invalid node id: 0x%02x", nodeID)
	}
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: funcID, Body: []uint8{nodeID}}
	if err := f.Update(); err != nil {
		panic(fmt.Sprintf("nodeRequest should never fail: %v", err))
	}
	return &f, nil
}

// GetNodeProtocolInfoRequest builds a ZW_GET_NODE_PROTOCOL_INFO request.
func GetNodeProtocolInfoRequest(nodeID uint8) (*frame.Frame, error) {
	return nodeRequest(FuncGetNodeProtocolInfo, nodeID)
}

// RequestNodeInfoRequest builds a ZW_REQUEST_NODE_INFO request.
func RequestNodeInfoRequest(nodeID uint8) (*frame.Frame, error) {
	return nodeRequest(FuncRequestNodeInfo, nodeID)
}

// IsFailedNodeIDRequest builds a ZW_IS_FAILED_NODE_ID request.
func IsFailedNodeIDRequest(nodeID uint8) (*frame.Frame, error) {
	return nodeRequest(FuncIsFailedNodeID, nodeID)
}

// RemoveFailedNodeIDRequest builds a ZW_REMOVE_FAILED_NODE_ID request.
func RemoveFailedNodeIDRequest(nodeID uint8, callbackID uint8) (*frame.Frame, error) {
	if !IsValidNodeID(nodeID) {
		return nil, fmt.Errorf("invalid node id: 0x%02x", nodeID)
	}
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncRemoveFailedNodeID, Body: []uint8{nodeID, callbackID}}
	if err := f.Update(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ReplaceFailedNodeRequest builds a ZW_REPLACE_FAILED_NODE request.
func ReplaceFailedNodeRequest(nodeID uint8, callbackID uint8) (*frame.Frame, error) {
	if !IsValidNodeID(nodeID) {
		return nil, fmt.Errorf("invalid node id: 0x%02x", nodeID)
	}
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncReplaceFailedNode, Body: []uint8{nodeID, callbackID}}
	if err := f.Update(); err != nil {
		return nil, err
	}
	return &f, nil
}

// SendDataRequest builds a ZW_SEND_DATA request. Body layout: node id, len
// (command class + payload), command class, payload..., transmit options,
// callback id (spec §6.1).
func SendDataRequest(nodeID uint8, commandClass uint8, payload []uint8,
	transmitOptions uint8, callbackID uint8) (*frame.Frame, error) {

	if !IsValidNodeID(nodeID) {
		return nil, fmt.Errorf("invalid node id: 0x%02x", nodeID)
	}

	body := []uint8{nodeID, uint8(1 + len(payload)), commandClass}
	body = append(body, payload...)
	body = append(body, transmitOptions, callbackID)

	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncSendData, Body: body}
	if err := f.Update(); err != nil {
		return nil, err
	}
	return &f, nil
}

// AddNodeToNetworkRequest builds a ZW_ADD_NODE_TO_NETWORK request
// (spec §4.6 AddDevice FSM, Idle -> LearnReady).
func AddNodeToNetworkRequest(highPower bool, callbackID uint8) *frame.Frame {
	mode := AddNodeModeAny
	if highPower {
		mode |= OptionHighPower
	}
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncAddNodeToNetwork, Body: []uint8{mode, callbackID}}
	_ = f.Update()
	return &f
}

// AddNodeStopRequest builds the STOP variant of ZW_ADD_NODE_TO_NETWORK
// (spec §4.6, Adding/Replicating -> Stopping).
func AddNodeStopRequest(callbackID uint8) *frame.Frame {
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncAddNodeToNetwork, Body: []uint8{0x05, callbackID}}
	_ = f.Update()
	return &f
}

// RemoveNodeFromNetworkRequest builds a ZW_REMOVE_NODE_FROM_NETWORK request.
func RemoveNodeFromNetworkRequest(highPower bool, callbackID uint8) *frame.Frame {
	mode := AddNodeModeAny
	if highPower {
		mode |= OptionHighPower
	}
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncRemoveNodeFromNetwork, Body: []uint8{mode, callbackID}}
	_ = f.Update()
	return &f
}

// RemoveNodeStopRequest builds the STOP variant of ZW_REMOVE_NODE_FROM_NETWORK.
func RemoveNodeStopRequest(callbackID uint8) *frame.Frame {
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncRemoveNodeFromNetwork, Body: []uint8{0x05, callbackID}}
	_ = f.Update()
	return &f
}

// CreateNewPrimaryRequest builds a ZW_CREATE_NEW_PRIMARY request (spec §4.6).
func CreateNewPrimaryRequest(mode uint8, callbackID uint8) *frame.Frame {
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncCreateNewPrimary, Body: []uint8{mode, callbackID}}
	_ = f.Update()
	return &f
}

// ControllerChangeRequest builds a ZW_CONTROLLER_CHANGE request (spec §4.6
// TransferPrimaryRole).
func ControllerChangeRequest(mode uint8, callbackID uint8) *frame.Frame {
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncControllerChange, Body: []uint8{mode, callbackID}}
	_ = f.Update()
	return &f
}

// SetLearnModeRequest builds a ZW_SET_LEARN_MODE request (spec §4.6
// ReceiveConfiguration).
func SetLearnModeRequest(mode uint8, callbackID uint8) *frame.Frame {
	f := frame.Frame{Preamble: frame.PreambleSOF, Type: frame.TypeRequest,
		MessageType: FuncSetLearnMode, Body: []uint8{mode, callbackID}}
	_ = f.Update()
	return &f
}
