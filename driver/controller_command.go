package driver

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

	"github.com/google/uuid"

	"github.com/zwavehost/zwdriver/frame"
	"github.com/zwavehost/zwdriver/proto"
)

// ControllerCommandKind names one of the long-running controller FSMs
// (spec §4.6).
type ControllerCommandKind uint8

const (
	CommandAddDevice ControllerCommandKind = iota
	CommandRemoveDevice
	CommandReceiveConfiguration
	CommandTransferPrimaryRole
	CommandReplaceFailedNode
	CommandMarkNodeAsFailed
)

func (k ControllerCommandKind) String() string {
	switch k {
	case CommandAddDevice:
		return "AddDevice"
	case CommandRemoveDevice:
		return "RemoveDevice"
	case CommandReceiveConfiguration:
		return "ReceiveConfiguration"
	case CommandTransferPrimaryRole:
		return "TransferPrimaryRole"
	case CommandReplaceFailedNode:
		return "ReplaceFailedNode"
	case CommandMarkNodeAsFailed:
		return "MarkNodeAsFailed"
	default:
		return "Unknown"
	}
}

// ControllerCommandState is the FSM's externally visible progress (spec
// §4.6).
type ControllerCommandState uint8

const (
	ControllerCommandStarting ControllerCommandState = iota
	ControllerCommandWaiting
	ControllerCommandInProgress
	ControllerCommandCompleted
	ControllerCommandFailed
	ControllerCommandCancelled
)

func (s ControllerCommandState) String() string {
	switch s {
	case ControllerCommandStarting:
		return "Starting"
	case ControllerCommandWaiting:
		return "Waiting"
	case ControllerCommandInProgress:
		return "InProgress"
	case ControllerCommandCompleted:
		return "Completed"
	case ControllerCommandFailed:
		return "Failed"
	case ControllerCommandCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// ControllerCommand tracks one in-flight controller FSM (spec §6.2,
// RequestID generated with github.com/google/uuid so a consumer driving
// several controllers can disambiguate commands across them without the
// driver handing out its own sequence numbers).
type ControllerCommand struct {
	RequestID uuid.UUID
	Kind      ControllerCommandKind
	State     ControllerCommandState
	NodeID    uint8
	Err       error
}

// controllerCommandRequest is handed to the pump goroutine over
// controllerCmdCh; only the pump goroutine touches the serial port, so
// BeginControllerCommand itself never blocks on I/O.
type controllerCommandRequest struct {
	cmd       *ControllerCommand
	nodeID    uint8
	highPower bool
	cancel    chan struct{}
}

// BeginControllerCommand starts kind, targeting nodeID where applicable
// (ReplaceFailedNode, MarkNodeAsFailed; ignored otherwise). Only one
// controller command may be in flight at a time (spec §4.6); starting a
// second while one is active returns an error. The command proceeds
// asynchronously: watch AddWatcher's NotificationControllerCommand events
// or poll the returned ControllerCommand's State.
func (d *Driver) BeginControllerCommand(kind ControllerCommandKind, nodeID uint8, highPower bool) (*ControllerCommand, error) {
	d.cmdMu.Lock()
	if d.activeCmd != nil && d.activeCmd.cmd.State != ControllerCommandCompleted &&
		d.activeCmd.cmd.State != ControllerCommandFailed && d.activeCmd.cmd.State != ControllerCommandCancelled {
		d.cmdMu.Unlock()
		return nil, fmt.Errorf("driver: controller command %v already in progress", d.activeCmd.cmd.Kind)
	}
	cmd := &ControllerCommand{RequestID: uuid.New(), Kind: kind, State: ControllerCommandStarting}
	req := &controllerCommandRequest{cmd: cmd, nodeID: nodeID, highPower: highPower, cancel: make(chan struct{})}
	d.activeCmd = req
	d.cmdMu.Unlock()

	select {
	case d.controllerCmdCh <- req:
	case <-d.stopCh:
		return nil, fmt.Errorf("driver: closed")
	}
	return cmd, nil
}

// CancelControllerCommand requests the in-flight command matching
// requestID stop (spec §6.2). It is a no-op if that command already
// finished or is not the active one.
func (d *Driver) CancelControllerCommand(requestID uuid.UUID) {
	d.cmdMu.Lock()
	defer d.cmdMu.Unlock()
	if d.activeCmd != nil && d.activeCmd.cmd.RequestID == requestID {
		close(d.activeCmd.cancel)
	}
}

// HasNodeFailed synchronously asks the controller whether it considers
// nodeID failed (spec §4.6 "synchronous" variant). It runs on the pump
// goroutine like every other transaction, handed across resultCh.
func (d *Driver) HasNodeFailed(nodeID uint8) (bool, error) {
	resultCh := make(chan syncCommandResult, 1)
	req := &controllerCommandRequest{
		cmd:    &ControllerCommand{RequestID: uuid.New(), Kind: CommandMarkNodeAsFailed, State: ControllerCommandStarting},
		nodeID: nodeID,
		cancel: make(chan struct{}),
	}
	d.syncResultMu.Lock()
	d.syncResults[req] = resultCh
	d.syncResultMu.Unlock()

	select {
	case d.controllerCmdCh <- req:
	case <-d.stopCh:
		return false, fmt.Errorf("driver: closed")
	}

	select {
	case r := <-resultCh:
		return r.failed, r.err
	case <-d.stopCh:
		return false, fmt.Errorf("driver: closed")
	}
}

type syncCommandResult struct {
	failed bool
	err    error
}

// runControllerCommand executes req to completion on the pump goroutine.
func (d *Driver) runControllerCommand(req *controllerCommandRequest) {
	defer func() {
		d.cmdMu.Lock()
		if d.activeCmd == req {
			// leave activeCmd set so State/Err remain visible to a caller
			// still holding the returned *ControllerCommand, cleared by
			// the next BeginControllerCommand call.
		}
		d.cmdMu.Unlock()
		d.enqueueNotification(Notification{Type: NotificationControllerCommand, HomeID: d.homeID, Command: req.cmd})
	}()

	d.syncResultMu.Lock()
	resultCh, isSync := d.syncResults[req]
	delete(d.syncResults, req)
	d.syncResultMu.Unlock()
	if isSync {
		failed, err := d.runHasNodeFailed(req.nodeID)
		resultCh <- syncCommandResult{failed: failed, err: err}
		req.cmd.State = ControllerCommandCompleted
		return
	}

	var err error
	switch req.cmd.Kind {
	case CommandAddDevice:
		err = d.runCallbackFSM(req.cmd, func(cbID uint8) *frame.Frame {
			return proto.AddNodeToNetworkRequest(req.highPower, cbID)
		}, proto.FuncAddNodeToNetwork, req.cancel)
	case CommandRemoveDevice:
		err = d.runCallbackFSM(req.cmd, func(cbID uint8) *frame.Frame {
			return proto.RemoveNodeFromNetworkRequest(req.highPower, cbID)
		}, proto.FuncRemoveNodeFromNetwork, req.cancel)
	case CommandReceiveConfiguration:
		err = d.runCallbackFSM(req.cmd, func(cbID uint8) *frame.Frame {
			return proto.SetLearnModeRequest(0x01, cbID)
		}, proto.FuncSetLearnMode, req.cancel)
	case CommandTransferPrimaryRole:
		err = d.runCallbackFSM(req.cmd, func(cbID uint8) *frame.Frame {
			return proto.ControllerChangeRequest(proto.AddNodeModeAny, cbID)
		}, proto.FuncControllerChange, req.cancel)
	case CommandReplaceFailedNode:
		err = d.runReplaceFailedNode(req.cmd, req.nodeID)
	case CommandMarkNodeAsFailed:
		err = d.runMarkNodeAsFailed(req.cmd, req.nodeID)
	default:
		err = fmt.Errorf("driver: unknown controller command kind %v", req.cmd.Kind)
	}

	if err != nil && req.cmd.State != ControllerCommandCancelled {
		req.cmd.State = ControllerCommandFailed
		req.cmd.Err = err
	}
}

// runCallbackFSM drives the ADD_NODE/REMOVE_NODE/SET_LEARN_MODE/
// CONTROLLER_CHANGE family (spec §4.6): write the request, await its ACK,
// then await a sequence of REQUEST callbacks sharing funcID until a
// terminal status arrives. All four share the same status byte encoding
// (Done == 0x06, Failed == 0x07; proto.go).
func (d *Driver) runCallbackFSM(cmd *ControllerCommand, build func(callbackID uint8) *frame.Frame,
	funcID uint8, cancel chan struct{}) error {

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	cbID := d.nextCallbackID()
	f := build(cbID)
	if err := d.writeFrame(f); err != nil {
		return err
	}
	if !d.awaitACK() {
		return fmt.Errorf("no ack for controller command")
	}
	cmd.State = ControllerCommandWaiting

	for {
		select {
		case <-cancel:
			_ = d.writeFrame(proto.AddNodeStopRequest(cbID))
			cmd.State = ControllerCommandCancelled
			return nil
		default:
		}

		cbFrame, ok := d.awaitCallback(funcID, d.cfg.TransactionTimeout*4)
		if !ok {
			return fmt.Errorf("timed out waiting for controller command callback")
		}
		cb, err := proto.ControllerCallbackResponse(cbFrame)
		if err != nil {
			return err
		}
		cmd.State = ControllerCommandInProgress
		if cb.NodeID != 0 {
			cmd.NodeID = cb.NodeID
		}

		switch cb.Status {
		case proto.AddNodeStatusDone:
			cmd.State = ControllerCommandCompleted
			return nil
		case proto.AddNodeStatusFailed:
			return fmt.Errorf("controller command failed, status 0x%02x", cb.Status)
		}
	}
}

// runReplaceFailedNode drives ZW_REPLACE_FAILED_NODE (spec §4.6): an
// immediate RESPONSE accepts or rejects the request, and a later REQUEST
// callback reports the eventual outcome.
func (d *Driver) runReplaceFailedNode(cmd *ControllerCommand, nodeID uint8) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	cbID := d.nextCallbackID()
	f, err := proto.ReplaceFailedNodeRequest(nodeID, cbID)
	if err != nil {
		return err
	}
	resp, err := d.transactLocked(f)
	if err != nil {
		return err
	}
	if len(resp.Body) < 1 || resp.Body[0] != proto.FailedNodeReplaceStatusReady {
		return fmt.Errorf("replace failed node rejected, status 0x%02x", safeByte(resp.Body))
	}
	cmd.State = ControllerCommandWaiting

	cbFrame, ok := d.awaitCallback(proto.FuncReplaceFailedNode, d.cfg.TransactionTimeout*4)
	if !ok {
		return fmt.Errorf("timed out waiting for replace failed node callback")
	}
	cb, err := proto.ControllerCallbackResponse(cbFrame)
	if err != nil {
		return err
	}
	cmd.NodeID = nodeID
	cmd.State = ControllerCommandInProgress
	if cb.Status != proto.FailedNodeReplaceStatusDone {
		return fmt.Errorf("replace failed node failed, status 0x%02x", cb.Status)
	}
	cmd.State = ControllerCommandCompleted
	return nil
}

// runMarkNodeAsFailed drives ZW_REMOVE_FAILED_NODE_ID, which OpenZWave
// also uses to implement a manual "mark as failed" operation: the node is
// removed from the controller's routing tables and reported failed from
// then on (spec §4.6). It shares ReplaceFailedNode's status byte encoding.
func (d *Driver) runMarkNodeAsFailed(cmd *ControllerCommand, nodeID uint8) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	cbID := d.nextCallbackID()
	f, err := proto.RemoveFailedNodeIDRequest(nodeID, cbID)
	if err != nil {
		return err
	}
	resp, err := d.transactLocked(f)
	if err != nil {
		return err
	}
	if len(resp.Body) < 1 || resp.Body[0] != proto.FailedNodeReplaceStatusReady {
		return fmt.Errorf("mark node as failed rejected, status 0x%02x", safeByte(resp.Body))
	}
	cmd.State = ControllerCommandWaiting

	cbFrame, ok := d.awaitCallback(proto.FuncRemoveFailedNodeID, d.cfg.TransactionTimeout*4)
	if !ok {
		return fmt.Errorf("timed out waiting for mark node as failed callback")
	}
	cb, err := proto.ControllerCallbackResponse(cbFrame)
	if err != nil {
		return err
	}
	cmd.NodeID = nodeID
	cmd.State = ControllerCommandInProgress
	if cb.Status != proto.FailedNodeReplaceStatusDone {
		return fmt.Errorf("mark node as failed failed, status 0x%02x", cb.Status)
	}
	cmd.State = ControllerCommandCompleted
	return nil
}

// runHasNodeFailed issues ZW_IS_FAILED_NODE_ID and reads its boolean
// result directly from the RESPONSE body.
func (d *Driver) runHasNodeFailed(nodeID uint8) (bool, error) {
	f, err := proto.IsFailedNodeIDRequest(nodeID)
	if err != nil {
		return false, err
	}
	resp, err := d.transact(f)
	if err != nil {
		return false, err
	}
	return len(resp.Body) > 0 && resp.Body[0] != 0, nil
}

func safeByte(b []uint8) uint8 {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
