package results

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Pool targets used by the product-photo views.
const (
	TargetCommon = "common"
	TargetWalk   = "walk"
)

// Views whose results feed the pools.
var (
	GhostMannequin = ViewKey{View: "style", SubView: "ghost"}
	ModelShots     = ViewKey{View: "style", SubView: "model"}
)

// Policy lists, in strict preference order, the views a target may borrow
// inputs from.
type Policy struct {
	Target  string    `toml:"target"`
	Sources []ViewKey `toml:"sources"`
}

type policyFile struct {
	Pools []Policy `toml:"pool"`
}

// DefaultPolicies prefers ghost-mannequin results and falls back to model
// shots; walking videos only accept model shots.
func DefaultPolicies() []Policy {
	return []Policy{
		{Target: TargetCommon, Sources: []ViewKey{GhostMannequin, ModelShots}},
		{Target: TargetWalk, Sources: []ViewKey{ModelShots}},
	}
}

// LoadPolicies reads [[pool]] tables from a TOML file and layers them over the
// defaults; a target defined in the file replaces the default for that target.
// An empty path returns the defaults.
func LoadPolicies(path string) ([]Policy, error) {
	policies := DefaultPolicies()
	if strings.TrimSpace(path) == "" {
		return policies, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("results: read policies: %w", err)
	}
	var file policyFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("results: parse policies: %w", err)
	}
	for _, p := range file.Pools {
		if err := p.validate(); err != nil {
			return nil, err
		}
		replaced := false
		for i := range policies {
			if policies[i].Target == p.Target {
				policies[i] = p
				replaced = true
			}
		}
		if !replaced {
			policies = append(policies, p)
		}
	}
	return policies, nil
}

func (p Policy) validate() error {
	if strings.TrimSpace(p.Target) == "" {
		return errors.New("results: pool policy without target")
	}
	if len(p.Sources) == 0 {
		return fmt.Errorf("results: pool %q has no sources", p.Target)
	}
	seen := make(map[ViewKey]struct{}, len(p.Sources))
	for _, src := range p.Sources {
		if src.View == "" || src.SubView == "" {
			return fmt.Errorf("results: pool %q has an incomplete source", p.Target)
		}
		if _, dup := seen[src]; dup {
			return fmt.Errorf("results: pool %q lists %s twice", p.Target, src)
		}
		seen[src] = struct{}{}
	}
	return nil
}
