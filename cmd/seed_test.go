package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/techagentng/collabhub/config"
	"github.com/techagentng/collabhub/db/memdb"
	"github.com/techagentng/collabhub/services"
)

func TestSeedIsRepeatable(t *testing.T) {
	store := memdb.New()
	profiles := services.NewProfileService(store, &config.Config{})
	ctx := context.Background()

	require.NoError(t, seed(ctx, profiles))
	require.NoError(t, seed(ctx, profiles))

	gym, err := profiles.GetProfile(ctx, "business-002")
	require.NoError(t, err)
	assert.Equal(t, "Mark's Gym", gym.DisplayName)
	assert.Equal(t, "business", gym.UserType)
	assert.Equal(t, "Fitness", gym.Category)

	john, err := profiles.GetProfile(ctx, "influencer-001")
	require.NoError(t, err)
	assert.Equal(t, "San Francisco", john.Location)
}

func TestOpenStoresRejectsUnknownDriver(t *testing.T) {
	_, err := openStores(&config.Config{StoreDriver: "cassandra"})
	assert.Error(t, err)

	st, err := openStores(&config.Config{StoreDriver: config.StoreMemory})
	require.NoError(t, err)
	assert.NoError(t, st.health.Check(context.Background()))
	assert.NoError(t, st.close())
}
