package service

import (
	"Keepsake/internal/api/config"
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/redis"
	"Keepsake/internal/pkg/security"
	"Keepsake/internal/repository"
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	vaultMaxFailures = 5
	vaultFailWindow  = 15 * time.Minute
)

type VaultService interface {
	SetPassword(ctx context.Context, scope Scope, req *dto.VaultPasswordDTO) error
	Unlock(ctx context.Context, scope Scope, password string) (*dto.VaultSessionDTO, error)
	Lock(ctx context.Context, token string) error
	// Session 返回解锁凭证的截止时间，凭证不存在或不属于该空间时返回零值
	Session(ctx context.Context, coupleID uint64, token string) (time.Time, error)
}

type vaultServiceImpl struct {
	coupleRepo repository.CoupleRepo
	sessionTTL time.Duration
}

func NewVaultService(coupleRepo repository.CoupleRepo, cfg config.VaultConfig) VaultService {
	ttl := time.Duration(cfg.SessionMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &vaultServiceImpl{coupleRepo: coupleRepo, sessionTTL: ttl}
}

// SetPassword 首次设置无需旧密码，修改时校验旧密码
func (s *vaultServiceImpl) SetPassword(ctx context.Context, scope Scope, req *dto.VaultPasswordDTO) error {
	if err := scope.Paired(); err != nil {
		return err
	}
	couple, err := s.coupleRepo.GetCoupleById(ctx, scope.CoupleID)
	if err != nil {
		return err
	}
	if couple == nil || !couple.IsMember(scope.UserID) {
		return ErrNotPaired
	}
	if couple.VaultPassword != "" {
		if err = security.CheckPasswordHash(req.OldPassword, couple.VaultPassword); err != nil {
			return ErrVaultPassword
		}
	}
	hash, err := security.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.coupleRepo.UpdateVaultPassword(ctx, scope.CoupleID, hash)
}

// Unlock 校验密码并签发短期凭证，连续失败过多时暂时锁定
func (s *vaultServiceImpl) Unlock(ctx context.Context, scope Scope, password string) (*dto.VaultSessionDTO, error) {
	if err := scope.Paired(); err != nil {
		return nil, err
	}
	failKey := fmt.Sprintf("%s%d:%d", consts.VaultFailKey, scope.CoupleID, scope.UserID)
	failures, err := redis.GetInt64(ctx, failKey)
	if err != nil {
		return nil, err
	}
	if failures >= vaultMaxFailures {
		return nil, ErrVaultTooManyTries
	}

	couple, err := s.coupleRepo.GetCoupleById(ctx, scope.CoupleID)
	if err != nil {
		return nil, err
	}
	if couple == nil || !couple.IsMember(scope.UserID) {
		return nil, ErrNotPaired
	}
	if couple.VaultPassword == "" {
		return nil, ErrVaultNoPassword
	}
	if err = security.CheckPasswordHash(password, couple.VaultPassword); err != nil {
		if n, incrErr := redis.IncrBy(ctx, failKey, 1); incrErr == nil && n == 1 {
			_ = redis.Expire(ctx, failKey, vaultFailWindow)
		}
		log.WarnContext(ctx, "vault unlock failed", "couple_id", scope.CoupleID, "user_id", scope.UserID)
		return nil, ErrVaultPassword
	}
	_ = redis.DeleteKey(ctx, failKey)

	token := uuid.NewString()
	if err = redis.SetWithExpiration(ctx, consts.VaultSessionKey+token, scope.CoupleID, s.sessionTTL); err != nil {
		return nil, err
	}
	return &dto.VaultSessionDTO{VaultToken: token, ExpiresAt: time.Now().Add(s.sessionTTL)}, nil
}

func (s *vaultServiceImpl) Lock(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return redis.DeleteKey(ctx, consts.VaultSessionKey+token)
}

func (s *vaultServiceImpl) Session(ctx context.Context, coupleID uint64, token string) (time.Time, error) {
	if token == "" || coupleID == 0 {
		return time.Time{}, nil
	}
	key := consts.VaultSessionKey + token
	value, err := redis.GetValue(ctx, key)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	if value != strconv.FormatUint(coupleID, 10) {
		return time.Time{}, nil
	}
	ttl, err := redis.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		return time.Time{}, err
	}
	return time.Now().Add(ttl), nil
}
