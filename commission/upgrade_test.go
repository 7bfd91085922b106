package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckUpgrade(t *testing.T) {
	tests := []struct {
		name     string
		current  TierName
		total    int
		upgrade  bool
		newTier  TierName
		increase string
	}{
		{"stays starter", TierStarter, 49, false, TierStarter, "0.00"},
		{"starter to ambassador", TierStarter, 50, true, TierAmbassador, "0.05"},
		{"starter straight to elite", TierStarter, 100, true, TierElite, "0.08"},
		{"ambassador to elite", TierAmbassador, 100, true, TierElite, "0.03"},
		{"empty label treated as starter", "", 0, false, TierStarter, "0.00"},
		{"unknown label treated as starter", "legacy", 50, true, TierAmbassador, "0.05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := CheckUpgrade(tt.current, tt.total)
			assert.Equal(t, tt.upgrade, up.ShouldUpgrade)
			assert.Equal(t, tt.newTier, up.NewTier.Name)
			assert.Equal(t, tt.increase, up.RateIncrease.StringFixed(2))
		})
	}
}

func TestCheckUpgradeNeverDowngrades(t *testing.T) {
	for _, current := range []TierName{TierStarter, TierAmbassador, TierElite} {
		for n := 0; n <= 150; n++ {
			up := CheckUpgrade(current, n)
			if rank(up.NewTier.Name) <= rank(current) {
				assert.Falsef(t, up.ShouldUpgrade, "current %s, total %d", current, n)
			}
		}
	}
}

func TestMilestoneCrossed(t *testing.T) {
	m, ok := MilestoneCrossed(4, 5)
	assert.True(t, ok)
	assert.Equal(t, 5, m)

	_, ok = MilestoneCrossed(5, 6)
	assert.False(t, ok)

	m, ok = MilestoneCrossed(9, 30)
	assert.True(t, ok)
	assert.Equal(t, 25, m)

	assert.True(t, IsFirstReferral(0, 1))
	assert.False(t, IsFirstReferral(1, 2))
	assert.Equal(t, []int{5, 10, 25, 50, 100, 250, 500, 1000}, Milestones())
}
