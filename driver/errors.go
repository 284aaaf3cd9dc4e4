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
)

var (
	errSendQueueFull   = errors.New("driver: controller rejected send data (queue full)")
	errSendDataTimeout = errors.New("driver: timed out waiting for send data callback")
)

// errTransmitFailed wraps a non-OK ZW_SEND_DATA completion status (spec
// §6.1 TransmitComplete codes).
func errTransmitFailed(status uint8) error {
	return fmt.Errorf("driver: send data transmit failed, status 0x%02x", status)
}
