package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/ammar0144/guideresto"
	"github.com/ammar0144/guideresto/pkg/config"
	"github.com/ammar0144/guideresto/pkg/db"
	"github.com/ammar0144/guideresto/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSession(t *testing.T, name string) *guideresto.Session {
	t.Helper()
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database = db.Config{
		Driver:       db.DriverSQLite,
		Database:     "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		Logging:      db.LoggingConfig{Level: "silent"},
	}
	session, err := guideresto.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close(ctx) })
	require.NoError(t, session.Migrate(ctx))
	return session
}

func TestSeedSkipsExistingCriteria(t *testing.T) {
	ctx := context.Background()
	session := openSession(t, "cmd_seed")

	require.NoError(t, seed(ctx, session, nil))
	require.NoError(t, seed(ctx, session, []string{"cuisine", "Prix: rapport qualité prix"}))

	all, err := session.Evaluations.GetAllCriteria(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Prix", all[3].Name)
	assert.Equal(t, "rapport qualité prix", all[3].Description)
}

func TestListPrintsRestaurants(t *testing.T) {
	ctx := context.Background()
	session := openSession(t, "cmd_list")

	city, err := session.Restaurants.CreateCity(ctx, "2000", "Neuchâtel")
	require.NoError(t, err)
	pizza, err := session.Restaurants.CreateRestaurantType(ctx, "Pizzeria", "")
	require.NoError(t, err)
	_, err = session.Restaurants.CreateRestaurant(ctx, "Luigi's", "", "", "Rue du Seyon 1", city, pizza)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, list(ctx, session, &out))
	assert.Contains(t, out.String(), "Luigi's")
	assert.Contains(t, out.String(), "Rue du Seyon 1, 2000 Neuchâtel")
}

func TestMatches(t *testing.T) {
	city := model.NewCity("1000", "Lausanne")
	r := model.NewRestaurant("Café du Port", "", "", "Quai 2", city, nil)

	assert.True(t, matches(r, "", ""))
	assert.True(t, matches(r, "port", "laus"))
	assert.False(t, matches(r, "gare", ""))
	assert.False(t, matches(r, "", "genève"))
	assert.Equal(t, "-", label(r.Type))
	assert.Equal(t, "Quai 2", address(model.Localisation{Street: "Quai 2"}))
}
