package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portalkeeper/portalkeeper/internal/models"
)

func TestStore_StartsAnonymous(t *testing.T) {
	s := New()

	snap := s.Current()
	assert.Equal(t, models.StateAnonymous, snap.State)
	assert.True(t, snap.User.IsEmpty())
	assert.Zero(t, snap.Version)
}

func TestStore_CommitAdvancesVersion(t *testing.T) {
	s := New()

	user := models.UserIdentity{Username: "tester", AuthToken: "T1", IsActive: true}
	require.NoError(t, s.Commit(user, models.StatePendingCaptivePortal))

	snap := s.Current()
	assert.Equal(t, models.StatePendingCaptivePortal, snap.State)
	assert.Equal(t, "tester", snap.User.Username)
	assert.Equal(t, uint64(1), snap.Version)

	require.NoError(t, s.Commit(user, models.StateAuthorized))
	assert.Equal(t, uint64(2), s.Current().Version)
}

func TestStore_CommitRejectsInvalidMove(t *testing.T) {
	s := New()

	// anonymous -> authorized невозможен без обмена со шлюзом
	err := s.Commit(models.UserIdentity{Username: "tester"}, models.StateAuthorized)
	require.Error(t, err)

	snap := s.Current()
	assert.Equal(t, models.StateAnonymous, snap.State)
	assert.True(t, snap.User.IsEmpty())
	assert.Zero(t, snap.Version)
}

func TestStore_Reset(t *testing.T) {
	s := New()
	require.NoError(t, s.Commit(models.UserIdentity{Username: "tester"}, models.StatePendingVerification))

	s.Reset()

	snap := s.Current()
	assert.True(t, snap.User.IsEmpty())
	assert.Equal(t, models.StateAnonymous, snap.State)
	assert.NotZero(t, snap.Version)
}
