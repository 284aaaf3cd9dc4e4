// Package zwlog gives every driver component its own structured logger.
package zwlog

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
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Writer is the shared destination for every component logger. A consumer
// may swap it before opening a Driver to redirect or reformat output.
var Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

// Component returns a logger tagged with the given component name, the way
// the teacher's log.Printf("DEBUG ...") / log.Printf("ERROR ...") calls were
// tagged by message prefix.
func Component(name string) zerolog.Logger {
	return zerolog.New(Writer).With().Timestamp().Str("component", name).Logger()
}

// ForNode returns a component logger additionally tagged with a HomeId and
// NodeId, mirroring the node.ID interpolated into nearly every teacher log
// line.
func ForNode(name string, homeID uint32, nodeID uint8) zerolog.Logger {
	return Component(name).With().
		Uint32("home_id", homeID).
		Uint8("node_id", nodeID).
		Logger()
}
