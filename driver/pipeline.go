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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zwavehost/zwdriver/cc"
	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/frame"
	"github.com/zwavehost/zwdriver/node"
	"github.com/zwavehost/zwdriver/persist"
	"github.com/zwavehost/zwdriver/proto"
	"github.com/zwavehost/zwdriver/value"
	"github.com/zwavehost/zwdriver/valueid"
)

// bootstrapAndInterrogate runs bootstrap, then interrogates every node
// discovered during bootstrap, one at a time (spec §2 data flow). It runs
// concurrently with mainLoop, which is already draining the send queue by
// the time this starts: a query an interrogation step enqueues (e.g. the
// ManufacturerSpecific/Versions/Instances "fire and settle" steps) is
// actually transmitted by mainLoop while this goroutine sleeps out the
// settle window, rather than sitting queued until this goroutine is done
// with every node. Both goroutines call transact concurrently; writeMu
// (transaction.go) keeps them off the wire at the same time, the way the
// teacher's controller.go splits doResponses/doRequests but shares one
// underlying connection.
func (d *Driver) bootstrapAndInterrogate() {
	defer close(d.stoppedBootstrap)

	if err := d.bootstrap(); err != nil {
		d.log.Error().Err(err).Msg("bootstrap failed")
		d.enqueueNotification(Notification{Type: NotificationDriverFailed, HomeID: d.homeID})
		d.flushNotifications()
		return
	}
	d.enqueueNotification(Notification{Type: NotificationDriverReady, HomeID: d.homeID})
	d.flushNotifications()

	for _, nodeID := range d.NodeIDs() {
		select {
		case <-d.stopCh:
			return
		default:
		}
		if err := d.interrogate(nodeID); err != nil {
			d.log.Warn().Err(err).Uint8("node", nodeID).Msg("node interrogation failed")
		}
		d.flushNotifications()
	}
}

// bootstrap performs the driver-level query stage that precedes any node
// (spec §4.4 "stage -1/0"): GET_VERSION, ZW_MEMORY_GET_ID and
// SERIAL_API_GET_INIT_DATA, then constructs a Node for every id in the
// controller's node bitmap except the controller's own id.
func (d *Driver) bootstrap() error {
	verResp, err := d.transact(proto.GetVersionRequest())
	if err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	if _, err := proto.GetVersionResponse(verResp); err != nil {
		return fmt.Errorf("parse get version: %w", err)
	}

	idResp, err := d.transact(proto.MemoryGetIDRequest())
	if err != nil {
		return fmt.Errorf("memory get id: %w", err)
	}
	ids, err := proto.MemoryGetIDResponse(idResp)
	if err != nil {
		return fmt.Errorf("parse memory get id: %w", err)
	}
	d.homeID = ids.HomeID
	d.controllerNodeID = ids.NodeID
	d.log = d.log.With().Uint32("home_id", d.homeID).Logger()

	// Implicit read on driver start (spec §6.2): a prior restart's Document
	// for this HomeId, if any, seeds each node's command-class version,
	// instance count and ValueStore once interrogation reaches NodeInfo
	// (reconcileNode), rather than starting every node from a blank slate.
	if doc, err := persist.Load(d.persistPath()); err == nil {
		d.persisted = doc
	} else if !errors.Is(err, os.ErrNotExist) {
		d.log.Warn().Err(err).Msg("failed to load persisted config")
	}

	initResp, err := d.transact(proto.SerialAPIGetInitDataRequest())
	if err != nil {
		return fmt.Errorf("serial api get init data: %w", err)
	}
	initData, err := proto.SerialAPIGetInitDataResponse(initResp)
	if err != nil {
		return fmt.Errorf("parse serial api get init data: %w", err)
	}

	d.nodesMu.Lock()
	for _, nodeID := range initData.Nodes {
		if nodeID == d.controllerNodeID {
			continue
		}
		d.nodes[nodeID] = node.New(d.homeID, nodeID, d.registry, d, d, d, d.nodeLogger(nodeID))
	}
	d.nodesMu.Unlock()

	for _, nodeID := range initData.Nodes {
		if nodeID == d.controllerNodeID {
			continue
		}
		d.enqueueNotification(Notification{Type: NotificationNodeAdded, HomeID: d.homeID, NodeID: nodeID})
	}

	return nil
}

// settleDuration is how long interrogate waits after firing a batch of
// per-command-class VERSION/MULTI_INSTANCE queries before moving to the
// next stage: those replies arrive as ordinary ApplicationCommandHandler
// traffic with no single terminating reply to await, so the pipeline
// gives them a fixed window rather than counting exact completions.
func (d *Driver) settleDuration() time.Duration {
	return d.cfg.TransactionTimeout
}

// interrogate drives nodeID through the query-stage pipeline (spec §4.4),
// resuming from whatever stage it last reached. A step that needs the
// node awake returns nil (not an error) if the node is currently asleep or
// does not respond in time; NodeAwake re-invokes interrogate once the node
// next wakes (spec §4.5).
func (d *Driver) interrogate(nodeID uint8) error {
	n, ok := d.Node(nodeID)
	if !ok {
		return fmt.Errorf("driver: unknown node %d", nodeID)
	}

	if n.Stage() < node.StageProtocolInfo {
		req, err := proto.GetNodeProtocolInfoRequest(nodeID)
		if err != nil {
			return err
		}
		resp, err := d.transact(req)
		if err != nil {
			return fmt.Errorf("node %d get protocol info: %w", nodeID, err)
		}
		pi, err := proto.GetNodeProtocolInfoResponse(resp)
		if err != nil {
			return err
		}
		n.ApplyProtocolInfo(pi.Capabilities.Listening, pi.Capabilities.Routing, pi.Capabilities.MaxBaud,
			pi.Security.Version, pi.DeviceClass.Basic, pi.DeviceClass.Generic, pi.DeviceClass.Specific)
		n.SetStage(node.StageProtocolInfo)
	}

	if n.Stage() < node.StageNodeInfo {
		if !n.IsAwake() {
			return nil
		}
		req, err := proto.RequestNodeInfoRequest(nodeID)
		if err != nil {
			return err
		}
		if _, err := d.transact(req); err != nil {
			return fmt.Errorf("node %d request node info: %w", nodeID, err)
		}
		upd, ok := d.awaitNodeInfoUpdate(nodeID, d.cfg.TransactionTimeout)
		if !ok {
			d.log.Debug().Uint8("node", nodeID).Msg("no node info update, will retry on next wake")
			return nil
		}
		d.applyNodeInfoUpdate(upd)
		n.SetStage(node.StageNodeInfo)
	}

	if n.Stage() < node.StageManufacturerSpecific {
		if !n.IsAwake() {
			return nil
		}
		if ms, ok := n.CommandClass(device.CommandClassManufacturerSpecific); ok {
			if err := ms.RequestState(cc.StageStatic, 1); err != nil {
				d.log.Warn().Err(err).Uint8("node", nodeID).Msg("manufacturer specific query failed")
			}
			time.Sleep(d.settleDuration())
		}
		n.SetStage(node.StageManufacturerSpecific)
	}

	if n.Stage() < node.StageVersions {
		if !n.IsAwake() {
			return nil
		}
		if instance, ok := n.CommandClass(device.CommandClassVersion); ok {
			if ver, ok := instance.(*cc.Version); ok {
				_ = ver.RequestState(cc.StageStatic, 1)
				for _, id := range n.CommandClassIDs() {
					if id == device.CommandClassVersion {
						continue
					}
					_ = ver.QueryCommandClass(id)
				}
				time.Sleep(d.settleDuration())
			}
		}
		n.SetStage(node.StageVersions)
	}

	if n.Stage() < node.StageInstances {
		if !n.IsAwake() {
			return nil
		}
		if instance, ok := n.CommandClass(device.CommandClassMultiInstance); ok {
			if mi, ok := instance.(*cc.MultiInstance); ok {
				for _, id := range n.CommandClassIDs() {
					if id == device.CommandClassMultiInstance {
						continue
					}
					_ = mi.QueryInstanceCount(id)
				}
				time.Sleep(d.settleDuration())
			}
		}
		n.SetStage(node.StageInstances)
	}

	if n.Stage() < node.StageStatic {
		if !n.IsAwake() {
			return nil
		}
		if err := n.RunStage(cc.StageStatic); err != nil {
			return err
		}
		n.SetStage(node.StageStatic)
	}

	if n.Stage() < node.StageDynamic {
		if !n.IsAwake() {
			return nil
		}
		if err := n.RunStage(cc.StageDynamic); err != nil {
			return err
		}
		n.SetStage(node.StageDynamic)
	}

	if n.Stage() < node.StageSession {
		if !n.IsAwake() {
			return nil
		}
		if err := n.RunStage(cc.StageSession); err != nil {
			return err
		}
		n.SetStage(node.StageSession)
	}

	n.SetStage(node.StageComplete)
	d.enqueueNotification(Notification{Type: NotificationNodeQueriesComplete, HomeID: d.homeID, NodeID: nodeID})
	return nil
}

// awaitNodeInfoUpdate blocks until the ApplicationUpdate triggered by a
// RequestNodeInfo arrives for nodeID, or timeout elapses.
func (d *Driver) awaitNodeInfoUpdate(nodeID uint8, timeout time.Duration) (*proto.ApplicationUpdate, bool) {
	ch := make(chan *proto.ApplicationUpdate, 1)
	d.updateWaitersMu.Lock()
	d.updateWaiters[nodeID] = ch
	d.updateWaitersMu.Unlock()

	select {
	case upd := <-ch:
		return upd, true
	case <-time.After(timeout):
	case <-d.stopCh:
	}

	d.updateWaitersMu.Lock()
	delete(d.updateWaiters, nodeID)
	d.updateWaitersMu.Unlock()
	return nil, false
}

// handleApplicationUpdate is invoked by ackAndHandle for every inbound
// ZW_APPLICATION_UPDATE (spec §6.1). If an interrogate call is waiting on
// this node's NodeInfo, it is handed the parsed update directly; otherwise
// the update is applied immediately as an unprompted refresh.
func (d *Driver) handleApplicationUpdate(f *frame.Frame) {
	upd, err := proto.ApplicationUpdateResponse(f)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to parse application update")
		return
	}
	if upd.Status != proto.ApplicationUpdateStateReceived {
		d.log.Debug().Uint8("status", upd.Status).Uint8("node", upd.NodeID).
			Msg("application update status, not a node info reply")
		return
	}

	d.updateWaitersMu.Lock()
	ch, waiting := d.updateWaiters[upd.NodeID]
	if waiting {
		delete(d.updateWaiters, upd.NodeID)
	}
	d.updateWaitersMu.Unlock()

	if waiting {
		ch <- upd
		return
	}
	d.applyNodeInfoUpdate(upd)
}

// applyNodeInfoUpdate parses an ApplicationUpdate's NodeInfo body (basic,
// generic, specific, supported classes, CommandClassMark, controlled
// classes; spec §4.4 step 1/Glossary) and installs it on the node.
func (d *Driver) applyNodeInfoUpdate(upd *proto.ApplicationUpdate) {
	n, ok := d.Node(upd.NodeID)
	if !ok {
		return
	}
	if len(upd.Body) < 3 {
		d.log.Warn().Uint8("node", upd.NodeID).Msg("node info body too short")
		return
	}
	basic, generic, specific := upd.Body[0], upd.Body[1], upd.Body[2]

	var supported, controlled []uint8
	seenMark := false
	for _, id := range upd.Body[3:] {
		if id == proto.CommandClassMark {
			seenMark = true
			continue
		}
		if seenMark {
			controlled = append(controlled, id)
		} else {
			supported = append(supported, id)
		}
	}

	n.ApplyNodeInfo(basic, generic, specific, supported, controlled)
	if instance, ok := n.CommandClass(device.CommandClassWakeUp); ok {
		if wu, ok := instance.(*cc.WakeUp); ok {
			wu.ControllerID = d.controllerNodeID
		}
	}
	d.reconcileNode(n)
}

// persistedNode returns nodeID's record from the prior restart's Document,
// or false if bootstrap found no persisted config or this node is new.
func (d *Driver) persistedNode(nodeID uint8) (persist.NodeElement, bool) {
	if d.persisted == nil {
		return persist.NodeElement{}, false
	}
	for _, elem := range d.persisted.Nodes {
		if elem.ID == nodeID {
			return elem, true
		}
	}
	return persist.NodeElement{}, false
}

// reconcileNode seeds n's command-class version/instance counts and
// ValueStore from the prior restart's Document, once per node per driver
// run (spec §4.8): discovery re-derives a value under the same ValueID the
// persisted record used, so ValueStore.GetOrCreate returns the
// already-seeded Value instead of firing a second ValueAdded once the
// node's live Static/Dynamic query actually reports it — that later report
// lands as a Refresh, reconciling the placeholder against live state.
func (d *Driver) reconcileNode(n *node.Node) {
	d.reconciledMu.Lock()
	if d.reconciled[n.ID] {
		d.reconciledMu.Unlock()
		return
	}
	d.reconciled[n.ID] = true
	d.reconciledMu.Unlock()

	elem, ok := d.persistedNode(n.ID)
	if !ok {
		return
	}

	for _, ccElem := range elem.CommandClasses {
		instance, ok := n.CommandClass(ccElem.ID)
		if !ok {
			continue
		}
		instance.SetVersion(ccElem.Version)
		instance.SetInstanceCount(ccElem.Instances)

		for _, valElem := range ccElem.Values {
			id := valueid.ID{
				HomeID: n.HomeID, NodeID: n.ID, Genre: valueid.Genre(valElem.Genre),
				CommandClassID: ccElem.ID, Instance: valElem.Instance, Index: valElem.Index,
				ValueType: valueid.Type(valElem.Type),
			}
			v, created := n.Values().GetOrCreate(id, valElem.Label)
			v.Units = valElem.Units
			v.ReadOnly = valElem.ReadOnly
			if valElem.Type == uint8(valueid.TypeList) && len(valElem.Items) > 0 {
				items := make([]value.ListItem, 0, len(valElem.Items))
				for _, it := range valElem.Items {
					items = append(items, value.ListItem{Label: it.Label, Value: it.Value})
				}
				v.SetItems(items)
			}
			if valElem.Raw != "" {
				v.SetLocal(valElem.Raw)
			}
			if created {
				d.ValueAdded(v)
			}
		}
	}
}

// handleApplicationCommand is invoked by ackAndHandle for every inbound
// ZW_APPLICATION_COMMAND_HANDLER (spec §6.1), routing it to the owning
// node's command-class dispatcher.
func (d *Driver) handleApplicationCommand(f *frame.Frame) {
	cmd, err := proto.ApplicationCommandHandlerResponse(f)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to parse application command handler")
		return
	}
	if len(cmd.Body) < 2 {
		d.log.Warn().Uint8("node", cmd.NodeID).Msg("application command body too short")
		return
	}

	n, ok := d.Node(cmd.NodeID)
	if !ok {
		d.log.Debug().Uint8("node", cmd.NodeID).Msg("application command for unknown node, dropping")
		return
	}

	commandClassID := cmd.Body[0]
	commandID := cmd.Body[1]
	payload := cmd.Body[2:]

	if err := n.Dispatch(commandClassID, commandID, payload); err != nil {
		d.log.Warn().Err(err).Uint8("node", cmd.NodeID).Uint8("command_class", commandClassID).
			Msg("command class dispatch failed")
	}
}
