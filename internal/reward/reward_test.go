package reward

import (
	"testing"

	"github.com/smirnovmax/artstore-system/internal/model"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name       string
		spentCents int64
		want       model.Level
	}{
		{"zero", 0, model.LevelNone},
		{"just below bronze", 99_99, model.LevelNone},
		{"bronze threshold", 100_00, model.LevelBronze},
		{"between bronze and silver", 150_00, model.LevelBronze},
		{"silver threshold", 500_00, model.LevelSilver},
		{"gold threshold", 1000_00, model.LevelGold},
		{"just below platinum", 9999_99, model.LevelGold},
		{"platinum threshold", 10000_00, model.LevelPlatinum},
		{"far beyond platinum", 250000_00, model.LevelPlatinum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelFor(tt.spentCents); got != tt.want {
				t.Fatalf("LevelFor(%d) = %s, want %s", tt.spentCents, got, tt.want)
			}
		})
	}
}

func TestLevelForMonotonic(t *testing.T) {
	rank := map[model.Level]int{
		model.LevelNone:     0,
		model.LevelBronze:   1,
		model.LevelSilver:   2,
		model.LevelGold:     3,
		model.LevelPlatinum: 4,
	}

	prev := LevelFor(0)
	for cents := int64(0); cents <= 11000_00; cents += 50_00 {
		cur := LevelFor(cents)
		if rank[cur] < rank[prev] {
			t.Fatalf("level dropped from %s to %s at %d", prev, cur, cents)
		}
		prev = cur
	}
}

func TestCashbackFor(t *testing.T) {
	// 5% от 150.00 = 7.50
	if got := CashbackFor(150_00); got != 7_50 {
		t.Fatalf("CashbackFor(15000) = %d, want 750", got)
	}
	if got := CashbackFor(0); got != 0 {
		t.Fatalf("CashbackFor(0) = %d, want 0", got)
	}
}

func TestCommissionFor(t *testing.T) {
	// 25% от суммы до скидки: 200.00 -> 50.00
	if got := CommissionFor(200_00); got != 50_00 {
		t.Fatalf("CommissionFor(20000) = %d, want 5000", got)
	}
}

func TestDiscountPercent(t *testing.T) {
	tests := []struct {
		level model.Level
		want  int
	}{
		{model.LevelNone, 0},
		{model.LevelBronze, 5},
		{model.LevelSilver, 10},
		{model.LevelGold, 15},
		{model.LevelPlatinum, 20},
		{model.Level("unknown"), 0},
	}

	for _, tt := range tests {
		if got := DiscountPercent(tt.level); got != tt.want {
			t.Fatalf("DiscountPercent(%s) = %d, want %d", tt.level, got, tt.want)
		}
	}
}
