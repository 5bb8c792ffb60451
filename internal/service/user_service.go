package service

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/database"
	"Keepsake/internal/pkg/redis"
	"Keepsake/internal/pkg/security"
	"Keepsake/internal/repository"
	"context"
	"time"

	"github.com/jinzhu/copier"
)

type UserService interface {
	Register(ctx context.Context, dto *dto.RegisterDTO) (*dto.UserDTO, error)
	Login(ctx context.Context, dto *dto.CredentialDTO) (*dto.TokenDTO, error)
	Logout(ctx context.Context, token string) error
	GetUserInfo(ctx context.Context, id uint64) (*dto.UserDTO, error)
	UpdateProfile(ctx context.Context, id uint64, dto *dto.UpdateProfileDTO) (*dto.UserDTO, error)
	IssueToken(ctx context.Context, userID uint64) (*dto.TokenDTO, error)
}

type UserServiceImpl struct {
	userRepo repository.UserRepo
	issuer   *security.TokenIssuer
}

func NewUserService(userRepo repository.UserRepo, issuer *security.TokenIssuer) UserService {
	return &UserServiceImpl{
		userRepo: userRepo,
		issuer:   issuer,
	}
}

func (s *UserServiceImpl) Register(ctx context.Context, regDTO *dto.RegisterDTO) (*dto.UserDTO, error) {
	findUser, err := s.userRepo.GetUserByUsername(ctx, regDTO.Username)
	if err != nil {
		return nil, err
	}
	if findUser != nil {
		return nil, ErrUserUsernameExist
	}

	user := &model.User{}
	if err = copier.Copy(user, regDTO); err != nil {
		return nil, err
	}
	if user.Password, err = security.HashPassword(regDTO.Password); err != nil {
		return nil, err
	}

	if err = s.userRepo.CreateUser(ctx, user); err != nil {
		if database.IsDuplicateEntry(err) {
			return nil, ErrUserUsernameExist
		}
		return nil, err
	}
	return toUserDTO(user), nil
}

func (s *UserServiceImpl) Login(ctx context.Context, credential *dto.CredentialDTO) (*dto.TokenDTO, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, credential.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err = security.CheckPasswordHash(credential.Password, user.Password); err != nil {
		return nil, ErrPasswordIncorrect
	}
	return s.tokenFor(user)
}

// IssueToken 配对完成后重新签发携带 couple_id 的令牌
func (s *UserServiceImpl) IssueToken(ctx context.Context, userID uint64) (*dto.TokenDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return s.tokenFor(user)
}

func (s *UserServiceImpl) tokenFor(user *model.User) (*dto.TokenDTO, error) {
	token, expiresAt, err := s.issuer.GenerateToken(user.ID, user.CoupleID)
	if err != nil {
		return nil, err
	}
	return &dto.TokenDTO{Token: token, ExpiresAt: expiresAt, User: toUserDTO(user)}, nil
}

// Logout 将令牌签名加入黑名单直到其自然过期
func (s *UserServiceImpl) Logout(ctx context.Context, token string) error {
	claims, err := s.issuer.ValidateToken(token)
	if err != nil {
		return ErrTokenInvalid
	}
	signature, err := security.ExtractSignature(token)
	if err != nil {
		return ErrTokenInvalid
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return redis.SetWithExpiration(ctx, consts.TokenBlacklistKey+signature, 1, ttl)
}

func (s *UserServiceImpl) GetUserInfo(ctx context.Context, id uint64) (*dto.UserDTO, error) {
	user, err := s.userRepo.GetUserById(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return toUserDTO(user), nil
}

func (s *UserServiceImpl) UpdateProfile(ctx context.Context, id uint64, profile *dto.UpdateProfileDTO) (*dto.UserDTO, error) {
	if err := s.userRepo.UpdateProfile(ctx, id, profile.Nickname, profile.AvatarURL); err != nil {
		return nil, err
	}
	return s.GetUserInfo(ctx, id)
}

func toUserDTO(user *model.User) *dto.UserDTO {
	userDTO := &dto.UserDTO{}
	_ = copier.Copy(userDTO, user)
	return userDTO
}
