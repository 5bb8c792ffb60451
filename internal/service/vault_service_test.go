package service

import (
	"Keepsake/internal/api/config"
	"Keepsake/internal/api/dto"
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/redis"
	"Keepsake/internal/pkg/security"
	"Keepsake/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useMiniRedis 将全局客户端指向内存 redis
func useMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := redis.Rdb
	redis.Rdb = goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = redis.Rdb.Close()
		redis.Rdb = prev
	})
	return mr
}

type memCoupleRepo struct {
	repository.CoupleRepo
	couples map[uint64]*model.Couple
}

func (r *memCoupleRepo) GetCoupleById(_ context.Context, id uint64) (*model.Couple, error) {
	c, ok := r.couples[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCoupleRepo) UpdateVaultPassword(_ context.Context, coupleID uint64, hash string) error {
	r.couples[coupleID].VaultPassword = hash
	return nil
}

func newVaultFixture(t *testing.T, password string) (VaultService, *memCoupleRepo) {
	t.Helper()
	couple := &model.Couple{ID: 1, UserAID: 1, UserBID: 2}
	if password != "" {
		hash, err := security.HashPassword(password)
		require.NoError(t, err)
		couple.VaultPassword = hash
	}
	repo := &memCoupleRepo{couples: map[uint64]*model.Couple{1: couple}}
	return NewVaultService(repo, config.VaultConfig{SessionMinutes: 10}), repo
}

func TestVaultUnlockLocksOutAfterRepeatedFailures(t *testing.T) {
	mr := useMiniRedis(t)
	svc, _ := newVaultFixture(t, "rose")
	ctx := context.Background()
	alice := Scope{UserID: 1, CoupleID: 1}
	failKey := consts.VaultFailKey + "1:1"

	for i := 0; i < vaultMaxFailures; i++ {
		_, err := svc.Unlock(ctx, alice, "tulip")
		require.ErrorIs(t, err, ErrVaultPassword)
	}
	assert.Equal(t, vaultFailWindow, mr.TTL(failKey))

	_, err := svc.Unlock(ctx, alice, "rose")
	assert.ErrorIs(t, err, ErrVaultTooManyTries)

	// 计数按用户区分
	session, err := svc.Unlock(ctx, Scope{UserID: 2, CoupleID: 1}, "rose")
	require.NoError(t, err)
	assert.NotEmpty(t, session.VaultToken)

	mr.FastForward(vaultFailWindow)
	session, err = svc.Unlock(ctx, alice, "rose")
	require.NoError(t, err)
	assert.NotEmpty(t, session.VaultToken)
	assert.False(t, mr.Exists(failKey))
}

func TestVaultUnlockResetsFailures(t *testing.T) {
	mr := useMiniRedis(t)
	svc, _ := newVaultFixture(t, "rose")
	ctx := context.Background()
	alice := Scope{UserID: 1, CoupleID: 1}

	_, err := svc.Unlock(ctx, alice, "tulip")
	require.ErrorIs(t, err, ErrVaultPassword)
	_, err = svc.Unlock(ctx, alice, "rose")
	require.NoError(t, err)
	assert.False(t, mr.Exists(consts.VaultFailKey+"1:1"))
}

func TestVaultUnlockWithoutPassword(t *testing.T) {
	useMiniRedis(t)
	svc, _ := newVaultFixture(t, "")

	_, err := svc.Unlock(context.Background(), Scope{UserID: 1, CoupleID: 1}, "rose")
	assert.ErrorIs(t, err, ErrVaultNoPassword)
	_, err = svc.Unlock(context.Background(), Scope{UserID: 3, CoupleID: 1}, "rose")
	assert.ErrorIs(t, err, ErrNotPaired)
}

func TestVaultSessionBoundToCouple(t *testing.T) {
	mr := useMiniRedis(t)
	svc, _ := newVaultFixture(t, "rose")
	ctx := context.Background()

	session, err := svc.Unlock(ctx, Scope{UserID: 1, CoupleID: 1}, "rose")
	require.NoError(t, err)

	until, err := svc.Session(ctx, 1, session.VaultToken)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), until, 5*time.Second)

	until, err = svc.Session(ctx, 2, session.VaultToken)
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	until, err = svc.Session(ctx, 1, "forged")
	require.NoError(t, err)
	assert.True(t, until.IsZero())

	mr.FastForward(10 * time.Minute)
	until, err = svc.Session(ctx, 1, session.VaultToken)
	require.NoError(t, err)
	assert.True(t, until.IsZero())
}

func TestVaultLockEndsSession(t *testing.T) {
	useMiniRedis(t)
	svc, _ := newVaultFixture(t, "rose")
	ctx := context.Background()

	session, err := svc.Unlock(ctx, Scope{UserID: 2, CoupleID: 1}, "rose")
	require.NoError(t, err)
	require.NoError(t, svc.Lock(ctx, session.VaultToken))

	until, err := svc.Session(ctx, 1, session.VaultToken)
	require.NoError(t, err)
	assert.True(t, until.IsZero())
}

func TestVaultSetPassword(t *testing.T) {
	svc, repo := newVaultFixture(t, "")
	ctx := context.Background()
	alice := Scope{UserID: 1, CoupleID: 1}

	require.NoError(t, svc.SetPassword(ctx, alice, &dto.VaultPasswordDTO{NewPassword: "rose"}))
	assert.NoError(t, security.CheckPasswordHash("rose", repo.couples[1].VaultPassword))

	err := svc.SetPassword(ctx, alice, &dto.VaultPasswordDTO{OldPassword: "lily", NewPassword: "tulip"})
	assert.ErrorIs(t, err, ErrVaultPassword)

	require.NoError(t, svc.SetPassword(ctx, alice, &dto.VaultPasswordDTO{OldPassword: "rose", NewPassword: "tulip"}))
	assert.NoError(t, security.CheckPasswordHash("tulip", repo.couples[1].VaultPassword))

	err = svc.SetPassword(ctx, Scope{UserID: 1}, &dto.VaultPasswordDTO{NewPassword: "x1234"})
	assert.ErrorIs(t, err, ErrNotPaired)
}
