package service

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/database"
	"Keepsake/internal/pkg/redis"
	"Keepsake/internal/pkg/util"
	"Keepsake/internal/repository"
	"context"
	"errors"
	log "log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

const inviteCodeLength = 8

type CoupleService interface {
	CreateInvite(ctx context.Context, userID uint64) (*dto.PairResultDTO, error)
	Join(ctx context.Context, userID uint64, code string) (*dto.PairResultDTO, error)
	GetCouple(ctx context.Context, scope Scope) (*dto.CoupleDTO, error)
}

type coupleServiceImpl struct {
	coupleRepo  repository.CoupleRepo
	userRepo    repository.UserRepo
	userService UserService
}

func NewCoupleService(coupleRepo repository.CoupleRepo, userRepo repository.UserRepo, userService UserService) CoupleService {
	return &coupleServiceImpl{
		coupleRepo:  coupleRepo,
		userRepo:    userRepo,
		userService: userService,
	}
}

// CreateInvite 创建情侣空间并返回邀请码，已创建但对方未加入时返回原邀请码
func (s *coupleServiceImpl) CreateInvite(ctx context.Context, userID uint64) (*dto.PairResultDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	var couple *model.Couple
	if user.CoupleID != 0 {
		if couple, err = s.coupleRepo.GetCoupleById(ctx, user.CoupleID); err != nil {
			return nil, err
		}
		if couple != nil && couple.UserBID != 0 {
			return nil, ErrAlreadyPaired
		}
	}

	for attempt := 0; couple == nil && attempt < 3; attempt++ {
		code, err := util.GenerateInviteCode(inviteCodeLength)
		if err != nil {
			return nil, err
		}
		candidate := &model.Couple{InviteCode: code, UserAID: userID}
		err = s.coupleRepo.CreateCouple(ctx, candidate)
		switch {
		case err == nil:
			couple = candidate
		case errors.Is(err, repository.ErrAlreadyPaired):
			return nil, ErrAlreadyPaired
		case database.IsDuplicateEntry(err):
			log.WarnContext(ctx, "invite code collision, retrying", "attempt", attempt)
		default:
			return nil, err
		}
	}
	if couple == nil {
		return nil, UnExpectedError
	}
	return s.pairResult(ctx, userID, couple)
}

// Join 凭邀请码加入，分布式锁串行化同一邀请码的并发加入
func (s *coupleServiceImpl) Join(ctx context.Context, userID uint64, code string) (*dto.PairResultDTO, error) {
	couple, err := s.coupleRepo.GetCoupleByInviteCode(ctx, util.NormalizeInviteCode(code))
	if err != nil {
		return nil, err
	}
	if couple == nil {
		return nil, ErrInviteInvalid
	}

	lockKey := consts.CoupleJoinLock + strconv.FormatUint(couple.ID, 10)
	lockValue := uuid.NewString()
	ok, err := redis.TryLock(ctx, lockKey, lockValue, 5*time.Second, 10)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrActionDuplicate
	}
	defer redis.UnLock(context.Background(), lockKey, lockValue)

	joined, err := s.coupleRepo.JoinCouple(ctx, couple.ID, userID)
	switch {
	case errors.Is(err, repository.ErrCoupleFull):
		return nil, ErrCoupleFull
	case errors.Is(err, repository.ErrAlreadyPaired):
		return nil, ErrAlreadyPaired
	case err != nil:
		return nil, err
	}
	return s.pairResult(ctx, userID, joined)
}

func (s *coupleServiceImpl) GetCouple(ctx context.Context, scope Scope) (*dto.CoupleDTO, error) {
	if err := scope.Paired(); err != nil {
		return nil, err
	}
	couple, err := s.coupleRepo.GetCoupleById(ctx, scope.CoupleID)
	if err != nil {
		return nil, err
	}
	if couple == nil || !couple.IsMember(scope.UserID) {
		return nil, ErrNotPaired
	}
	return s.toCoupleDTO(ctx, couple, scope.UserID)
}

func (s *coupleServiceImpl) pairResult(ctx context.Context, userID uint64, couple *model.Couple) (*dto.PairResultDTO, error) {
	coupleDTO, err := s.toCoupleDTO(ctx, couple, userID)
	if err != nil {
		return nil, err
	}
	token, err := s.userService.IssueToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.PairResultDTO{Couple: coupleDTO, TokenDTO: *token}, nil
}

func (s *coupleServiceImpl) toCoupleDTO(ctx context.Context, couple *model.Couple, viewerID uint64) (*dto.CoupleDTO, error) {
	coupleDTO := &dto.CoupleDTO{}
	if err := copier.Copy(coupleDTO, couple); err != nil {
		return nil, err
	}
	coupleDTO.HasVaultPassword = couple.VaultPassword != ""
	// 配对完成后邀请码失效，不再下发
	if couple.UserBID != 0 {
		coupleDTO.InviteCode = ""
	}
	if partnerID := couple.Partner(viewerID); partnerID != 0 {
		partner, err := s.userRepo.GetUserById(ctx, partnerID)
		if err != nil {
			return nil, err
		}
		if partner != nil {
			coupleDTO.Partner = toUserDTO(partner)
		}
	}
	return coupleDTO, nil
}
