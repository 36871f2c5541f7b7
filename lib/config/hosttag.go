// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/clustermetrics/lib/tsdb"
)

// HostTag is the host_tag setting. In files it is a boolean (true
// tags points with the local hostname, false adds no host tag) or a
// string naming the host explicitly. The zero value is true.
type HostTag struct {
	Disabled bool
	Name     string
}

// ParseHostTag parses the textual form: "true", "auto" or "" for the
// local hostname, "false" or "none" for no tag, anything else as a
// host name.
func ParseHostTag(s string) HostTag {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true", "auto", "yes", "on":
		return HostTag{}
	case "false", "none", "no", "off":
		return HostTag{Disabled: true}
	default:
		return HostTag{Name: strings.TrimSpace(s)}
	}
}

// Mode converts to the client setting.
func (h HostTag) Mode() tsdb.HostTagMode {
	switch {
	case h.Disabled:
		return tsdb.HostTagNone
	case h.Name != "":
		return tsdb.HostTagValue(h.Name)
	default:
		return tsdb.HostTagAuto
	}
}

func (h HostTag) String() string { return h.Mode().String() }

func (h *HostTag) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: host_tag must be a boolean or a host name", node.Line)
	}
	if node.Tag == "!!bool" {
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return err
		}
		*h = HostTag{Disabled: !enabled}
		return nil
	}
	*h = ParseHostTag(node.Value)
	return nil
}

func (h *HostTag) UnmarshalJSON(data []byte) error {
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*h = HostTag{Disabled: !enabled}
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("host_tag must be a boolean or a host name: %s", data)
	}
	*h = ParseHostTag(name)
	return nil
}
