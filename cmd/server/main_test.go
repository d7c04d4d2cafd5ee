package main

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mosque-manager/internal/config"
	"github.com/iliyamo/mosque-manager/internal/repository"
)

func TestTokenStore(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s, err := tokenStore(config.Config{Revocation: "sql"}, db, nil)
	require.NoError(t, err)
	assert.IsType(t, &repository.TokenRepo{}, s)

	s, err = tokenStore(config.Config{Revocation: "redis"}, db, rdb)
	require.NoError(t, err)
	assert.IsType(t, &repository.RedisTokenStore{}, s)

	_, err = tokenStore(config.Config{Revocation: "redis"}, db, nil)
	assert.Error(t, err)

	_, err = tokenStore(config.Config{Revocation: "etcd"}, db, rdb)
	assert.Error(t, err)
}
