package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClaimableUnit_WithDefaults(t *testing.T) {
	u := ClaimableUnit{ID: "u1", ProjectID: "p1", PRNumber: 3}

	d := u.WithDefaults()
	assert.False(t, *d.Merged)
	assert.Zero(t, *d.Score)
	assert.Zero(t, *d.BountyAmount)
	assert.Zero(t, *d.AmountPaid)
	assert.Nil(t, d.ClaimedBy)
	assert.Nil(t, d.ClaimedAt)

	assert.Nil(t, u.Merged, "original is not modified")
}

func TestClaimableUnit_WithDefaultsKeepsPresentValues(t *testing.T) {
	u := ClaimableUnit{Merged: Ptr(true), Score: Ptr(0.0), BountyAmount: Ptr(0.05)}

	d := u.WithDefaults()
	assert.True(t, *d.Merged)
	assert.Equal(t, 0.05, *d.BountyAmount)
	assert.Same(t, u.Score, d.Score)
}

func TestClaimableUnit_Clone(t *testing.T) {
	now := time.Now()
	u := ClaimableUnit{ClaimedBy: Ptr("alice"), ClaimedAt: &now, AmountPaid: Ptr(1.0)}

	c := u.Clone()
	*c.ClaimedBy = "bob"
	*c.AmountPaid = 2

	assert.Equal(t, "alice", u.Claimant())
	assert.Equal(t, 1.0, *u.AmountPaid)
	assert.Equal(t, "bob", c.Claimant())
}

func TestNormalizeRepoIdentifier(t *testing.T) {
	assert.Equal(t, "github.com/acme/widgets", NormalizeRepoIdentifier(" GitHub.com/Acme/Widgets/ "))
}

func TestKey(t *testing.T) {
	u := ClaimableUnit{ProjectID: "p", PRNumber: 9}
	assert.Equal(t, UnitKey{ProjectID: "p", PRNumber: 9}, u.Key())
}
