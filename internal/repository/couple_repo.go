package repository

import (
	"Keepsake/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrCoupleFull    = errors.New("couple already has two members")
	ErrAlreadyPaired = errors.New("user already paired")
)

type CoupleRepo interface {
	GetCoupleById(ctx context.Context, id uint64) (*model.Couple, error)
	GetCoupleByInviteCode(ctx context.Context, code string) (*model.Couple, error)
	CreateCouple(ctx context.Context, couple *model.Couple) error
	JoinCouple(ctx context.Context, coupleID uint64, userID uint64) (*model.Couple, error)
	UpdateVaultPassword(ctx context.Context, coupleID uint64, hash string) error
}

type coupleRepoImpl struct {
	db *gorm.DB
}

func NewCoupleRepo(db *gorm.DB) CoupleRepo {
	return &coupleRepoImpl{db: db}
}

func (s *coupleRepoImpl) GetCoupleById(ctx context.Context, id uint64) (*model.Couple, error) {
	couple := &model.Couple{}
	err := s.db.WithContext(ctx).First(couple, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return couple, err
}

func (s *coupleRepoImpl) GetCoupleByInviteCode(ctx context.Context, code string) (*model.Couple, error) {
	couple := &model.Couple{}
	err := s.db.WithContext(ctx).Where("invite_code = ?", code).First(couple).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return couple, err
}

// CreateCouple 创建空间并绑定发起人，同时建立空间唯一的聊天会话
func (s *coupleRepoImpl) CreateCouple(ctx context.Context, couple *model.Couple) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(couple).Error; err != nil {
			return err
		}
		res := tx.Model(&model.User{}).
			Where("id = ? AND couple_id = 0", couple.UserAID).
			Update("couple_id", couple.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPaired
		}
		return tx.Create(&model.Conversation{CoupleID: couple.ID, LastMessageAt: time.Now()}).Error
	})
}

// JoinCouple 行锁保证同一空间只会被一人加入
func (s *coupleRepoImpl) JoinCouple(ctx context.Context, coupleID uint64, userID uint64) (*model.Couple, error) {
	couple := &model.Couple{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(couple, coupleID).Error; err != nil {
			return err
		}
		if couple.UserBID != 0 || couple.UserAID == userID {
			return ErrCoupleFull
		}
		res := tx.Model(&model.User{}).
			Where("id = ? AND couple_id = 0", userID).
			Update("couple_id", coupleID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPaired
		}
		couple.UserBID = userID
		return tx.Model(couple).Update("user_b_id", userID).Error
	})
	if err != nil {
		return nil, err
	}
	return couple, nil
}

func (s *coupleRepoImpl) UpdateVaultPassword(ctx context.Context, coupleID uint64, hash string) error {
	return s.db.WithContext(ctx).Model(&model.Couple{}).
		Where("id = ?", coupleID).
		Update("vault_password", hash).Error
}
