// Package serialport abstracts the OS-specific serial port underneath the
// driver's transaction engine (spec §4.1, explicitly excluding OS/device
// particulars from the rest of the module).
package serialport

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
	"time"

	"github.com/tarm/serial"
)

// Port is the minimal interface the driver needs from a serial
// connection. Tests substitute an in-memory implementation; production
// code uses TarmPort.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// TarmPort wraps github.com/tarm/serial.Port to satisfy Port.
type TarmPort struct {
	port *serial.Port
}

// Open opens devicePath at 115200 baud 8N1, matching the Z-Wave serial API
// framing (spec §4.1), with a read timeout so the I/O pump can poll its
// stop channel between reads.
func Open(devicePath string, readTimeout time.Duration) (*TarmPort, error) {
	cfg := &serial.Config{Name: devicePath, Baud: 115200, ReadTimeout: readTimeout}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &TarmPort{port: p}, nil
}

func (t *TarmPort) Read(p []byte) (int, error)  { return t.port.Read(p) }
func (t *TarmPort) Write(p []byte) (int, error) { return t.port.Write(p) }
func (t *TarmPort) Flush() error                { return t.port.Flush() }
func (t *TarmPort) Close() error                { return t.port.Close() }
