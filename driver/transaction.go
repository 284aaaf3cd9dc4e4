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
	"time"

	"github.com/zwavehost/zwdriver/frame"
	"github.com/zwavehost/zwdriver/proto"
)

// ioReader is the only goroutine that touches the serial port's read side
// (spec §4.1). It feeds every complete frame to d.incoming and is the
// driver-level counterpart of the teacher's doResponses goroutine.
func (d *Driver) ioReader() {
	defer close(d.stoppedIO)

	var parser frame.Parser
	buf := make([]byte, 256)

	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		n, err := d.port.Read(buf)
		if err != nil {
			// Read errors are expected on a timed-out, non-blocking read;
			// the stop check above is what actually exits this loop.
			continue
		}
		for _, b := range buf[:n] {
			f, perr := parser.Parse(b)
			if perr != nil {
				d.log.Warn().Err(perr).Msg("frame parse error, sending NAK")
				_, _ = d.port.Write([]byte{frame.PreambleNAK})
				continue
			}
			if f == nil {
				continue
			}
			select {
			case d.incoming <- f:
			case <-d.stopCh:
				return
			}
		}
	}
}

func (d *Driver) writeFrame(f *frame.Frame) error {
	b, err := f.Bytes()
	if err != nil {
		return err
	}
	_, err = d.port.Write(b)
	return err
}

// transact writes f, waits for its ACK, then waits for a RESPONSE frame
// with the same MessageType (spec §4.2). It retries the whole
// write-then-wait cycle up to cfg.MaxSendAttempts times (spec §7
// TransactionTimeout, testable property 4). The bootstrap/interrogation
// goroutine and mainLoop's send pump both call transact concurrently;
// writeMu serializes them onto the wire one at a time so awaitACK/
// awaitResponse's shared read of d.incoming is never contended by two
// transactions at once (spec §5 shared serial lock).
func (d *Driver) transact(f *frame.Frame) (*frame.Frame, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.transactLocked(f)
}

// transactLocked is transact's body, callable by a caller that already
// holds writeMu for a larger critical section spanning a later callback
// wait (e.g. controller-command FSMs that must keep the wire to
// themselves from the initial RESPONSE through the eventual callback
// REQUEST).
func (d *Driver) transactLocked(f *frame.Frame) (*frame.Frame, error) {
	var lastErr error

	for attempt := 1; attempt <= d.cfg.MaxSendAttempts; attempt++ {
		if err := d.writeFrame(f); err != nil {
			lastErr = err
			continue
		}

		if !d.awaitACK() {
			lastErr = fmt.Errorf("no ACK for function 0x%02x (attempt %d/%d)",
				f.MessageType, attempt, d.cfg.MaxSendAttempts)
			continue
		}

		resp, ok := d.awaitResponse(f.MessageType)
		if !ok {
			lastErr = fmt.Errorf("no response for function 0x%02x (attempt %d/%d)",
				f.MessageType, attempt, d.cfg.MaxSendAttempts)
			continue
		}
		return resp, nil
	}

	return nil, lastErr
}

// awaitACK waits for the controller's ACK to a frame just written,
// routing any unsolicited SOF frame received in the meantime instead of
// discarding it (spec §4.1/§4.2).
func (d *Driver) awaitACK() bool {
	deadline := time.After(d.cfg.ACKTimeout)
	for {
		select {
		case f := <-d.incoming:
			switch f.Preamble {
			case frame.PreambleACK:
				return true
			case frame.PreambleNAK, frame.PreambleCAN:
				return false
			case frame.PreambleSOF:
				d.ackAndHandle(f)
			}
		case <-deadline:
			return false
		case <-d.stopCh:
			return false
		}
	}
}

// awaitResponse waits for a RESPONSE frame whose MessageType matches
// wantFunc, routing any other unsolicited frame received meanwhile.
func (d *Driver) awaitResponse(wantFunc uint8) (*frame.Frame, bool) {
	deadline := time.After(d.cfg.TransactionTimeout)
	for {
		select {
		case f := <-d.incoming:
			if f.Preamble == frame.PreambleSOF {
				d.ackAndHandle(f)
				if f.Type == frame.TypeResponse && f.MessageType == wantFunc {
					return f, true
				}
			}
		case <-deadline:
			return nil, false
		case <-d.stopCh:
			return nil, false
		}
	}
}

// awaitCallback waits for a REQUEST frame whose MessageType matches
// wantFunc, used after ZW_SEND_DATA and the controller-command functions
// accept a request, to learn its eventual outcome (spec §4.2, §4.6).
func (d *Driver) awaitCallback(wantFunc uint8, timeout time.Duration) (*frame.Frame, bool) {
	deadline := time.After(timeout)
	for {
		select {
		case f := <-d.incoming:
			if f.Preamble == frame.PreambleSOF {
				d.ackAndHandle(f)
				if f.Type == frame.TypeRequest && f.MessageType == wantFunc {
					return f, true
				}
			}
		case <-deadline:
			return nil, false
		case <-d.stopCh:
			return nil, false
		}
	}
}

// ackAndHandle immediately ACKs an inbound SOF frame (spec §4.1 step 1)
// and, if it is one of the two unsolicited application message types,
// dispatches it to the node pipeline; any other frame is only ACKed here,
// and is consumed solely by a caller awaiting its function id.
func (d *Driver) ackAndHandle(f *frame.Frame) {
	if err := d.writeAck(); err != nil {
		d.log.Warn().Err(err).Msg("failed to ACK inbound frame")
	}

	switch f.MessageType {
	case proto.FuncApplicationCommandHandler:
		d.handleApplicationCommand(f)
	case proto.FuncApplicationUpdate:
		d.handleApplicationUpdate(f)
	}
}

func (d *Driver) writeAck() error {
	_, err := d.port.Write([]byte{frame.PreambleACK})
	return err
}
