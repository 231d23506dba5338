// Package gamedata defines the contract for the static map/item/recipe
// reference-data loaders spec.md §1 names as an out-of-scope external
// collaborator. The interfaces here are the seam other components (bank
// travel, routines) program against; Static provides a YAML-backed fixture
// implementation for tests and examples rather than the production loader.
package gamedata

import "github.com/genoclaw/artifacts-agent/internal/gameapi"

// Recipe is the crafting-cost record for one item code.
type Recipe struct {
	ItemCode    string         `yaml:"item_code"`
	Skill       string         `yaml:"skill"`
	Level       int            `yaml:"level"`
	Ingredients map[string]int `yaml:"ingredients"`
	// EventCode, when set, names the world event that must be active
	// (per an EventSource) for this recipe to be craftable at all.
	EventCode string `yaml:"event_code,omitempty"`
}

// GatherSource describes where an item can be gathered and at what skill
// requirement.
type GatherSource struct {
	ItemCode string `yaml:"item_code"`
	Skill    string `yaml:"skill"`
	Level    int    `yaml:"level"`
	Code     string `yaml:"code"` // resource node code
	// EventCode, when set, names the world event that must be active for
	// this source to be gatherable at all (e.g. a seasonal resource node).
	EventCode string `yaml:"event_code,omitempty"`
}

// Monsters, Recipes, GatherSources look up static reference data by item
// or monster code. Implementations may back this with a bundled fixture,
// a remote catalogue, or the game server's own reference endpoints — none
// of which this package specifies.
type Monsters interface {
	Monster(code string) (gameapi.Monster, bool)
}

type Recipes interface {
	Recipe(itemCode string) (Recipe, bool)
}

type GatherSources interface {
	GatherSource(itemCode string) (GatherSource, bool)
}

// Catalogue bundles the three lookups routines and bank-travel consult.
type Catalogue interface {
	Monsters
	Recipes
	GatherSources
}

// Static is a fixed, in-memory Catalogue loaded once from a YAML fixture
// — adequate for tests and small deployments; it is not the production
// data loader spec.md excludes from scope.
type Static struct {
	monsters      map[string]gameapi.Monster
	recipes       map[string]Recipe
	gatherSources map[string]GatherSource
}

// NewStatic builds a Catalogue from already-parsed fixture slices.
func NewStatic(monsters []gameapi.Monster, recipes []Recipe, gatherSources []GatherSource) *Static {
	s := &Static{
		monsters:      make(map[string]gameapi.Monster, len(monsters)),
		recipes:       make(map[string]Recipe, len(recipes)),
		gatherSources: make(map[string]GatherSource, len(gatherSources)),
	}
	for _, m := range monsters {
		s.monsters[m.Code] = m
	}
	for _, r := range recipes {
		s.recipes[r.ItemCode] = r
	}
	for _, g := range gatherSources {
		s.gatherSources[g.ItemCode] = g
	}
	return s
}

func (s *Static) Monster(code string) (gameapi.Monster, bool) {
	m, ok := s.monsters[code]
	return m, ok
}

func (s *Static) Recipe(itemCode string) (Recipe, bool) {
	r, ok := s.recipes[itemCode]
	return r, ok
}

func (s *Static) GatherSource(itemCode string) (GatherSource, bool) {
	g, ok := s.gatherSources[itemCode]
	return g, ok
}
