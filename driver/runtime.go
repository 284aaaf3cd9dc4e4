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

	"github.com/zwavehost/zwdriver/device"
	"github.com/zwavehost/zwdriver/proto"
)

// mainLoop runs for the rest of the driver's life, started by Open
// alongside (not after) bootstrap and the initial interrogation pass: it
// drains the priority send queue and services controller-command requests,
// the runtime counterpart of the teacher's doRequests select loop.
func (d *Driver) mainLoop() {
	defer close(d.stoppedMain)
	for {
		select {
		case <-d.stopCh:
			return
		case req := <-d.controllerCmdCh:
			d.runControllerCommand(req)
			d.flushNotifications()
			continue
		default:
		}

		if m, ok := d.sendQ.popSendable(d.isNodeAwake); ok {
			d.sendMsg(m)
			d.flushNotifications()
			continue
		}

		select {
		case <-d.stopCh:
			return
		case req := <-d.controllerCmdCh:
			d.runControllerCommand(req)
			d.flushNotifications()
		case <-d.sendQ.readyCh():
		}
	}
}

// sendMsg wraps m in a ZW_SEND_DATA envelope, transacts it (ACK, then the
// immediate queued-ok RESPONSE, then the completion callback REQUEST;
// spec §4.2), retries the whole cycle up to cfg.MaxSendAttempts times, and
// follows up on a successful WAKE_UP_NO_MORE_INFORMATION send by marking
// the node asleep again once its backlog is empty (spec §4.5).
func (d *Driver) sendMsg(m *msg) {
	log := d.nodeLogger(m.nodeID)
	callbackID := d.nextCallbackID()

	// The whole attempt — immediate RESPONSE plus the later completion
	// REQUEST callback — must stay atomic with respect to the
	// bootstrap/interrogation goroutine's own transact calls, since the
	// callback is an unsolicited frame only a reader of d.incoming can
	// catch (spec §5 shared serial lock; see transact's writeMu doc).
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxSendAttempts; attempt++ {
		m.attempts = attempt

		req, err := proto.SendDataRequest(m.nodeID, m.commandClassID, m.payload, proto.DefaultTransmitOptions, callbackID)
		if err != nil {
			log.Error().Err(err).Msg("failed to build send data request")
			return
		}

		if err := d.writeFrame(req); err != nil {
			lastErr = err
			continue
		}
		if !d.awaitACK() {
			lastErr = fmt.Errorf("no ack for send data")
			continue
		}
		resp, ok := d.awaitResponse(proto.FuncSendData)
		if !ok {
			lastErr = fmt.Errorf("no response for send data")
			continue
		}
		if len(resp.Body) < 1 || resp.Body[0] == 0 {
			lastErr = errSendQueueFull
			continue
		}

		cbFrame, ok := d.awaitCallback(proto.FuncSendData, d.cfg.TransactionTimeout)
		if !ok {
			lastErr = errSendDataTimeout
			continue
		}
		cb, err := proto.SendDataResponse(cbFrame)
		if err != nil {
			lastErr = err
			continue
		}
		if cb.CallbackID != callbackID {
			log.Debug().Uint8("got", cb.CallbackID).Uint8("want", callbackID).
				Msg("send data callback id mismatch, ignoring")
			continue
		}
		if cb.Status != proto.TransmitCompleteOK {
			lastErr = errTransmitFailed(cb.Status)
			continue
		}

		d.onSendComplete(m)
		return
	}

	log.Warn().Err(lastErr).Uint8("command_class", m.commandClassID).
		Int("attempts", m.attempts).Msg("send data exhausted retries")
}

// onSendComplete runs after a message is confirmed delivered. It detects
// a completed WAKE_UP_NO_MORE_INFORMATION send and, once nothing else for
// that node remains queued, marks the node asleep (spec §4.5).
func (d *Driver) onSendComplete(m *msg) {
	if m.commandClassID != device.CommandClassWakeUp || len(m.payload) == 0 || m.payload[0] != wakeUpNoMoreInformation {
		d.maybeSendWakeUpNoMoreInformation(m.nodeID)
		return
	}

	n, ok := d.Node(m.nodeID)
	if !ok {
		return
	}
	n.MarkAsleep()
	d.pendingSleepMu.Lock()
	delete(d.pendingSleep, m.nodeID)
	d.pendingSleepMu.Unlock()
	d.enqueueNotification(Notification{Type: NotificationNodeAsleep, HomeID: d.homeID, NodeID: m.nodeID})
}

// maybeSendWakeUpNoMoreInformation checks whether nodeID woke up, has
// nothing left queued, and is still owed a WAKE_UP_NO_MORE_INFORMATION; if
// so it asks the node's WakeUp command class to send it.
func (d *Driver) maybeSendWakeUpNoMoreInformation(nodeID uint8) {
	d.pendingSleepMu.Lock()
	owed := d.pendingSleep[nodeID]
	d.pendingSleepMu.Unlock()
	if !owed || d.sendQ.hasNode(nodeID) {
		return
	}

	n, ok := d.Node(nodeID)
	if !ok || n.IsListening() {
		return
	}
	instance, ok := n.CommandClass(device.CommandClassWakeUp)
	if !ok {
		return
	}
	wu, ok := instance.(interface{ NoMoreInformation() error })
	if !ok {
		return
	}
	if err := wu.NoMoreInformation(); err != nil {
		d.log.Warn().Err(err).Uint8("node", nodeID).Msg("failed to queue wake up no more information")
	}
}
