package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fortuna/kitscout/internal/config"
	"github.com/fortuna/kitscout/internal/publisher"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{DatabaseURL: "sqlite://:memory:"}
}

func TestBuildWithoutRedis(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Cache)
	assert.IsType(t, publisher.Nop{}, a.Publisher)

	deps := a.RESTDeps()
	assert.Len(t, deps.Checks, 1)
	assert.Contains(t, deps.Checks, "database")
	assert.NotNil(t, deps.Campaigns)
	assert.NotNil(t, deps.Ingester)

	n, err := a.LeadRepo.Count(context.Background(), store.LeadFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuildWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Cache)
	assert.IsType(t, &publisher.RedisStreamPublisher{}, a.Publisher)
	assert.Contains(t, a.RESTDeps().Checks, "redis")
	assert.NoError(t, a.Cache.HealthCheck(context.Background()))
}

func TestBuildRejectsUnknownDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = "mysql://localhost/kitscout"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}
