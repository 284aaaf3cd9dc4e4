package persist

import (
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0x12345678.xml")

	doc := &Document{
		HomeID:           "0x12345678",
		ControllerNodeID: 1,
		InitCaps:         0x07,
		ControllerCaps:   0x02,
		PollInterval:     30,
		Nodes: []NodeElement{
			{
				ID: 9, Listening: true, Routing: true, MaxBaud: 1,
				Basic: 0x04, Generic: 0x10, Specific: 0x01,
				CommandClasses: []CommandClassElement{
					{
						ID: 0x25, Version: 1, Instances: 1,
						Values: []ValueElement{
							{Genre: 1, Index: 0, Instance: 1, Type: 0, Label: "Switch", Raw: "true"},
						},
					},
				},
				Groups: []GroupElement{
					{Number: 1, Members: "1,9"},
				},
			},
		},
	}

	if err := Save(path, doc); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.HomeID != doc.HomeID || loaded.ControllerNodeID != doc.ControllerNodeID {
		t.Fatalf("root attributes did not round-trip: got %+v", loaded)
	}
	if len(loaded.Nodes) != 1 || loaded.Nodes[0].ID != 9 {
		t.Fatalf("node did not round-trip: got %+v", loaded.Nodes)
	}
	if len(loaded.Nodes[0].CommandClasses) != 1 || loaded.Nodes[0].CommandClasses[0].ID != 0x25 {
		t.Fatalf("command class did not round-trip: got %+v", loaded.Nodes[0].CommandClasses)
	}
	if len(loaded.Nodes[0].CommandClasses[0].Values) != 1 ||
		loaded.Nodes[0].CommandClasses[0].Values[0].Raw != "true" {
		t.Fatalf("value did not round-trip: got %+v", loaded.Nodes[0].CommandClasses[0].Values)
	}
	if len(loaded.Nodes[0].Groups) != 1 || loaded.Nodes[0].Groups[0].Members != "1,9" {
		t.Fatalf("group did not round-trip: got %+v", loaded.Nodes[0].Groups)
	}

	reSavedPath := filepath.Join(dir, "resaved.xml")
	if err := Save(reSavedPath, loaded); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	reLoaded, err := Load(reSavedPath)
	if err != nil {
		t.Fatalf("re-load: %v", err)
	}
	if reLoaded.Nodes[0].CommandClasses[0].Values[0].Raw != "true" {
		t.Fatalf("second round-trip lost data: %+v", reLoaded)
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sidecar.yaml")

	s := &Sidecar{HomeIDs: []string{"0x12345678"}, PollIntervalSeconds: 30}
	if err := SaveSidecar(path, s); err != nil {
		t.Fatalf("save sidecar: %v", err)
	}
	loaded, err := LoadSidecar(path)
	if err != nil {
		t.Fatalf("load sidecar: %v", err)
	}
	if len(loaded.HomeIDs) != 1 || loaded.HomeIDs[0] != "0x12345678" || loaded.PollIntervalSeconds != 30 {
		t.Fatalf("sidecar did not round-trip: %+v", loaded)
	}
}

func TestLoadSidecarMissingFileReturnsZeroValue(t *testing.T) {
	s, err := LoadSidecar(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("expected no error for missing sidecar, got %v", err)
	}
	if len(s.HomeIDs) != 0 {
		t.Fatalf("expected zero-value sidecar, got %+v", s)
	}
}
