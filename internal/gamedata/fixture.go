package gamedata

import (
	"fmt"
	"os"

	"github.com/genoclaw/artifacts-agent/internal/gameapi"
	"gopkg.in/yaml.v3"
)

type fixtureFile struct {
	Monsters      []fixtureMonster `yaml:"monsters"`
	Recipes       []Recipe         `yaml:"recipes"`
	GatherSources []GatherSource   `yaml:"gather_sources"`
}

type fixtureMonster struct {
	Code           string              `yaml:"code"`
	Level          int                 `yaml:"level"`
	HP             int                 `yaml:"hp"`
	Attack         fixtureElementStats `yaml:"attack"`
	DmgBonus       fixtureElementStats `yaml:"dmg_bonus"`
	Resistance     fixtureElementStats `yaml:"resistance"`
	CriticalStrike int                 `yaml:"critical_strike"`
	Initiative     int                 `yaml:"initiative"`
}

type fixtureElementStats struct {
	Fire  int `yaml:"fire"`
	Earth int `yaml:"earth"`
	Water int `yaml:"water"`
	Air   int `yaml:"air"`
}

func (f fixtureElementStats) toStats() gameapi.ElementStats {
	return gameapi.ElementStats{Fire: f.Fire, Earth: f.Earth, Water: f.Water, Air: f.Air}
}

// LoadStaticFixture reads a YAML reference-data bundle from path and
// builds a Static catalogue from it.
func LoadStaticFixture(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gamedata fixture %s: %w", path, err)
	}
	var doc fixtureFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse gamedata fixture %s: %w", path, err)
	}

	monsters := make([]gameapi.Monster, 0, len(doc.Monsters))
	for _, m := range doc.Monsters {
		monsters = append(monsters, gameapi.Monster{
			Code:           m.Code,
			Level:          m.Level,
			HP:             m.HP,
			Attack:         m.Attack.toStats(),
			DmgBonus:       m.DmgBonus.toStats(),
			Resistance:     m.Resistance.toStats(),
			CriticalStrike: m.CriticalStrike,
			Initiative:     m.Initiative,
		})
	}
	return NewStatic(monsters, doc.Recipes, doc.GatherSources), nil
}
