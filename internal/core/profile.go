package core

import (
	"fmt"
	"sort"
	"strings"
)

// AgentProfile describes one deployable agent process.
type AgentProfile struct {
	// Name is the key used by AGENT and the CLI.
	Name string
	// Title is the agent name reported by /health and used in logs.
	Title string
	// Listen is the default HTTP listen address.
	Listen string
	// ServeIndex enables the GET / landing document.
	ServeIndex bool
	// UsesTracker means the agent's tools talk to Jira.
	UsesTracker bool
}

const (
	AgentPlanner  = "planner"
	AgentProgress = "progress"
	AgentImage    = "image"
	AgentDigest   = "digest"
	AgentRisks    = "risks"
)

var profiles = map[string]*AgentProfile{
	AgentPlanner: {
		Name:        AgentPlanner,
		Title:       "Planner",
		Listen:      "0.0.0.0:8001",
		UsesTracker: true,
	},
	AgentProgress: {
		Name:        AgentProgress,
		Title:       "Progress",
		Listen:      "0.0.0.0:8002",
		UsesTracker: true,
	},
	AgentImage: {
		Name:       AgentImage,
		Title:      "Image",
		Listen:     "0.0.0.0:8003",
		ServeIndex: true,
	},
	AgentDigest: {
		Name:   AgentDigest,
		Title:  "Digest",
		Listen: "0.0.0.0:8004",
	},
	AgentRisks: {
		Name:       AgentRisks,
		Title:      "Risks",
		Listen:     "0.0.0.0:8005",
		ServeIndex: true,
	},
}

// LoadProfile returns the profile for the given agent name.
// Empty name defaults to "planner". Unknown names return an error.
func LoadProfile(name string) (*AgentProfile, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		name = AgentPlanner
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (valid: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	out := *p
	return &out, nil
}

// ProfileNames lists the known agent names in lexical order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
