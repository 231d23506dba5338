package gameapi

import "context"

// Client is the full surface spec.md §6 lists under "Game API client
// (consumed, not defined here)". Every method takes the acting
// character's name (where the underlying endpoint is character-scoped)
// and returns an ActionResult (or a thin wrapper around one) carrying the
// cooldown descriptor the caller must apply via charctx.Context.
//
// This package does not implement Client against the real server — that
// HTTP plumbing is the out-of-scope collaborator named in spec.md §1.
// internal/gameapitest provides an in-memory fake satisfying this
// interface for use by every other package's tests.
type Client interface {
	GetMyCharacters(ctx context.Context) ([]PlayerLive, error)
	GetMyDetails(ctx context.Context) ([]PlayerLive, error)

	GetMaps(ctx context.Context, q MapsQuery) ([]MapTile, error)

	Move(ctx context.Context, charName string, x, y int) (ActionResult, error)
	Fight(ctx context.Context, charName string) (FightOutcome, error)
	Gather(ctx context.Context, charName string) (GatherOutcome, error)
	// Rest and CompleteTask are not enumerated in the distilled operation
	// list but are required by the Rest and CompleteTask routines (§4.I)
	// and present on the upstream server as ordinary character actions.
	Rest(ctx context.Context, charName string) (ActionResult, error)
	CompleteTask(ctx context.Context, charName string) (ActionResult, error)
	Craft(ctx context.Context, charName, code string, qty int) (ActionResult, error)
	UseItem(ctx context.Context, charName, code string, qty int) (ActionResult, error)
	Recycle(ctx context.Context, charName, code string, qty int) (ActionResult, error)
	Equip(ctx context.Context, charName, code string, slot EquipmentSlot) (ActionResult, error)
	Unequip(ctx context.Context, charName string, slot EquipmentSlot) (ActionResult, error)

	GetBankItems(ctx context.Context, q BankItemsQuery) (BankPage, error)
	DepositBank(ctx context.Context, charName string, items []InventorySlot) (ActionResult, error)
	WithdrawBank(ctx context.Context, charName string, items []InventorySlot) (ActionResult, error)
	DepositGold(ctx context.Context, charName string, qty int) (ActionResult, error)
	WithdrawGold(ctx context.Context, charName string, qty int) (ActionResult, error)
	BuyBankExpansion(ctx context.Context, charName string) (ActionResult, error)

	GetAchievements(ctx context.Context, q AchievementsQuery) ([]Achievement, error)
	GetAccountAchievements(ctx context.Context, account string, q AchievementsQuery) ([]Achievement, error)

	// WaitForCooldown blocks, at the collaborator's discretion, until the
	// given cooldown has elapsed. The scheduler (§4.J) does not rely on
	// this — it waits locally via clock.WaitUntil — but the method is
	// part of the upstream contract (spec.md §6) for callers that want
	// the collaborator to own the wait.
	WaitForCooldown(ctx context.Context, cd Cooldown) error
}
