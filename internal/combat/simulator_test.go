package combat

import (
	"testing"

	"github.com/genoclaw/artifacts-agent/internal/gameapi"
)

func TestSimulateScenario6(t *testing.T) {
	attacker := gameapi.CombatStats{
		HP: 1000, MaxHP: 1000,
		Attack:     gameapi.ElementStats{Fire: 50},
		Initiative: 100,
	}
	defender := gameapi.CombatStats{
		HP: 500, MaxHP: 500,
		Attack:     gameapi.ElementStats{Fire: 30},
		Initiative: 50,
	}

	got := Simulate(attacker, defender)
	want := Outcome{Win: true, Turns: 19, RemainingHP: 730}
	if got != want {
		t.Fatalf("Simulate() = %+v, want %+v", got, want)
	}
}

func TestSimulateDeterministic(t *testing.T) {
	attacker := gameapi.CombatStats{HP: 300, MaxHP: 300, Attack: gameapi.ElementStats{Fire: 20, Water: 10}, CriticalStrike: 15, Initiative: 10}
	defender := gameapi.CombatStats{HP: 250, MaxHP: 250, Attack: gameapi.ElementStats{Earth: 18}, Resistance: gameapi.ElementStats{Fire: 20}, Initiative: 12}

	first := Simulate(attacker, defender)
	second := Simulate(attacker, defender)
	if first != second {
		t.Fatalf("Simulate is not deterministic: %+v != %+v", first, second)
	}
}

func TestDamageZeroAttackContributesNothing(t *testing.T) {
	attacker := gameapi.CombatStats{Attack: gameapi.ElementStats{Fire: 10}}
	defender := gameapi.CombatStats{}
	got := Damage(attacker, defender)
	if got != 10 {
		t.Fatalf("Damage() = %d, want 10 (no dmg bonus, no resistance)", got)
	}
}

func TestDamageAppliesResistance(t *testing.T) {
	attacker := gameapi.CombatStats{Attack: gameapi.ElementStats{Fire: 100}}
	defender := gameapi.CombatStats{Resistance: gameapi.ElementStats{Fire: 50}}
	got := Damage(attacker, defender)
	if got != 50 {
		t.Fatalf("Damage() = %d, want 50", got)
	}
}

func TestCanBeatMonsterRequiresTwentyPercentHP(t *testing.T) {
	// A fight that wins but drains below 20% remaining HP must not pass
	// canBeatMonster, per spec.md §4.F.
	attacker := gameapi.CombatStats{HP: 80, MaxHP: 80, Attack: gameapi.ElementStats{Fire: 5}, Initiative: 1}
	defender := gameapi.CombatStats{HP: 20, MaxHP: 20, Attack: gameapi.ElementStats{Fire: 17}, Initiative: 100}

	outcome := Simulate(attacker, defender)
	if !outcome.Win {
		t.Fatalf("expected attacker to win this scenario, got %+v", outcome)
	}
	if CanBeatMonster(attacker, defender) {
		t.Fatalf("CanBeatMonster should be false when remaining HP < 20%%: %+v", outcome)
	}
}

func TestHPNeededForFight(t *testing.T) {
	attacker := gameapi.CombatStats{HP: 1000, MaxHP: 1000, Attack: gameapi.ElementStats{Fire: 50}, Initiative: 100}
	defender := gameapi.CombatStats{HP: 500, MaxHP: 500, Attack: gameapi.ElementStats{Fire: 30}, Initiative: 50}

	needed, ok := HPNeededForFight(attacker, defender)
	if !ok {
		t.Fatalf("expected a win prediction")
	}
	// remainingHp from scenario 6 is 730, maxHp 1000: needed = 1000-730+1 = 271.
	if needed != 271 {
		t.Fatalf("HPNeededForFight() = %d, want 271", needed)
	}
}
