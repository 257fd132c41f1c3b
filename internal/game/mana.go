package game

import "fmt"

// ManaPool tracks a player's spendable mana and the per-turn cap.
type ManaPool struct {
	Current    int
	CurrentMax int
	Max        int
}

// NewManaPool creates an empty pool with the given hard maximum.
func NewManaPool(limit int) ManaPool {
	return ManaPool{Max: limit}
}

// Change adds delta and clamps the result to [0, Max].
func (mp *ManaPool) Change(delta int) int {
	mp.Current = clamp(mp.Current+delta, 0, mp.Max)
	return mp.Current
}

// Grow raises the cap by one, up to Max, and refills to the new cap.
func (mp *ManaPool) Grow() {
	mp.CurrentMax = clamp(mp.CurrentMax+1, 0, mp.Max)
	mp.Current = mp.CurrentMax
}

func (mp *ManaPool) CanPay(cost int) bool {
	return mp.Current >= cost
}

// Pay deducts cost or fails without changing the pool.
func (mp *ManaPool) Pay(cost int) error {
	if cost < 0 {
		return fmt.Errorf("negative cost %d", cost)
	}
	if !mp.CanPay(cost) {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientMana, cost, mp.Current)
	}
	mp.Current -= cost
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
