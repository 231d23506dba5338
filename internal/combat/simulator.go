// Package combat implements the deterministic turn-by-turn fight
// predictor of spec.md §4.F. Simulate is a pure function: identical
// inputs always produce identical {win, turns, remainingHp} (spec.md §8
// testable property), so it never takes a clock or any other ambient
// dependency.
package combat

import (
	"math"

	"github.com/genoclaw/artifacts-agent/internal/gameapi"
)

const maxTurns = 100

// Fighter is the mutable per-turn state the simulator tracks for one
// side. Initiative and MaxHP are fixed for the fight; HP is drained.
type Fighter struct {
	Stats gameapi.CombatStats
	HP    int
}

func newFighter(s gameapi.CombatStats) Fighter {
	return Fighter{Stats: s, HP: s.HP}
}

// Outcome is the result of one simulated fight.
type Outcome struct {
	Win         bool
	Turns       int
	RemainingHP int
}

// Damage computes the expected damage attacker deals to defender in one
// turn, per spec.md §4.F:
//
//	boosted   = attack_e + round(attack_e * (dmg_e + dmg) / 100)
//	reduction = round(boosted * res_e / 100)
//	contribute max(0, boosted - reduction), summed over the four elements
//
// then scaled by the expected critical-strike multiplier:
//
//	total * (1 + min(critical_strike, 100)/100 * 0.5), rounded to integer.
func Damage(attacker, defender gameapi.CombatStats) int {
	total := 0
	for _, e := range gameapi.Elements {
		atk := attacker.Attack.Get(e)
		if atk == 0 {
			continue
		}
		dmgPct := attacker.DmgBonus.Get(e) + attacker.Dmg
		boosted := atk + roundHalfAwayFromZero(float64(atk)*float64(dmgPct)/100)
		resPct := defender.Resistance.Get(e)
		reduction := roundHalfAwayFromZero(float64(boosted) * float64(resPct) / 100)
		contribution := boosted - reduction
		if contribution < 0 {
			contribution = 0
		}
		total += contribution
	}
	crit := attacker.CriticalStrike
	if crit > 100 {
		crit = 100
	}
	multiplier := 1 + float64(crit)/100*0.5
	return roundHalfAwayFromZero(float64(total) * multiplier)
}

func roundHalfAwayFromZero(v float64) int {
	if v >= 0 {
		return int(math.Floor(v + 0.5))
	}
	return -int(math.Floor(-v + 0.5))
}

// attackerGoesFirst decides turn order per spec.md §4.F: "higher
// first; tie broken by higher max-HP; second tie deterministic" — the
// deterministic tiebreak here is "attacker (first argument) goes first",
// which is stable and reproducible across calls.
func attackerGoesFirst(attacker, defender gameapi.CombatStats) bool {
	if attacker.Initiative != defender.Initiative {
		return attacker.Initiative > defender.Initiative
	}
	if attacker.MaxHP != defender.MaxHP {
		return attacker.MaxHP > defender.MaxHP
	}
	return true
}

// Simulate runs a deterministic fight between attacker and defender,
// capped at 100 turns. Turns are individual actions, alternating between
// the two sides starting with whichever has the initiative (spec.md
// §4.F); the first side to bring the other to HP<=0 wins. On timeout,
// Win is false and RemainingHP is the attacker's HP at the cap.
func Simulate(attacker, defender gameapi.CombatStats) Outcome {
	a := newFighter(attacker)
	d := newFighter(defender)

	attackerActsFirst := attackerGoesFirst(attacker, defender)

	for turn := 1; turn <= maxTurns; turn++ {
		attackerActsThisTurn := (turn%2 == 1) == attackerActsFirst
		if attackerActsThisTurn {
			d.HP -= Damage(a.Stats, d.Stats)
			if d.HP <= 0 {
				return Outcome{Win: true, Turns: turn, RemainingHP: a.HP}
			}
		} else {
			a.HP -= Damage(d.Stats, a.Stats)
			if a.HP <= 0 {
				return Outcome{Win: false, Turns: turn, RemainingHP: a.HP}
			}
		}
	}

	return Outcome{Win: false, Turns: maxTurns, RemainingHP: a.HP}
}

// CanBeatMonster is the higher-level gating predicate of spec.md §4.F:
// a win that also retains at least 20% HP.
func CanBeatMonster(attacker, defender gameapi.CombatStats) bool {
	o := Simulate(attacker, defender)
	if !o.Win {
		return false
	}
	return float64(o.RemainingHP) >= 0.2*float64(attacker.MaxHP)
}

// HPNeededForFight returns the HP the attacker would need to have
// entered the fight with a full margin of 1 above what it would have
// lost, per spec.md §4.F: (maxHp - remainingHp) + 1 when the simulation
// wins. ok is false when the simulation does not predict a win at all.
func HPNeededForFight(attacker, defender gameapi.CombatStats) (needed int, ok bool) {
	o := Simulate(attacker, defender)
	if !o.Win {
		return 0, false
	}
	return (attacker.MaxHP - o.RemainingHP) + 1, true
}
