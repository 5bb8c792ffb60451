package repository

import (
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ReactionColumns = Columns{
	"image_id":   KindUint,
	"user_id":    KindUint,
	"emoji":      KindString,
	"vault":      KindBool,
	"created_at": KindTime,
}

type ReactionRepo interface {
	// UpsertReaction 每人每图一条，返回是否为新建
	UpsertReaction(ctx context.Context, reaction *model.Reaction) (bool, error)
	GetReaction(ctx context.Context, coupleID, imageID, userID uint64) (*model.Reaction, error)
	FindReactions(ctx context.Context, coupleID uint64, filter rowfilter.Filter, order rowfilter.Order, limit int) ([]*model.Reaction, error)
	DeleteReaction(ctx context.Context, reaction *model.Reaction) error
}

type reactionRepoImpl struct {
	db *gorm.DB
}

func NewReactionRepo(db *gorm.DB) ReactionRepo {
	return &reactionRepoImpl{db: db}
}

func (s *reactionRepoImpl) UpsertReaction(ctx context.Context, reaction *model.Reaction) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := &model.Reaction{}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("image_id = ? AND user_id = ?", reaction.ImageID, reaction.UserID).
			First(existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			return tx.Create(reaction).Error
		}
		if err != nil {
			return err
		}
		reaction.CreatedAt = existing.CreatedAt
		return tx.Model(existing).Updates(map[string]interface{}{
			"emoji": reaction.Emoji,
			"vault": reaction.Vault,
		}).Error
	})
	return created, err
}

func (s *reactionRepoImpl) GetReaction(ctx context.Context, coupleID, imageID, userID uint64) (*model.Reaction, error) {
	reaction := &model.Reaction{}
	err := s.db.WithContext(ctx).
		Where("image_id = ? AND user_id = ? AND couple_id = ?", imageID, userID, coupleID).
		First(reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return reaction, err
}

func (s *reactionRepoImpl) FindReactions(ctx context.Context, coupleID uint64, filter rowfilter.Filter, order rowfilter.Order, limit int) ([]*model.Reaction, error) {
	db, err := ReactionColumns.Where(s.db.WithContext(ctx).Where("couple_id = ?", coupleID), filter)
	if err != nil {
		return nil, err
	}
	if db, err = ReactionColumns.OrderBy(db, order, rowfilter.Asc("created_at")); err != nil {
		return nil, err
	}
	reactions := make([]*model.Reaction, 0)
	err = db.Limit(clampLimit(limit)).Find(&reactions).Error
	return reactions, err
}

func (s *reactionRepoImpl) DeleteReaction(ctx context.Context, reaction *model.Reaction) error {
	return s.db.WithContext(ctx).
		Where("image_id = ? AND user_id = ?", reaction.ImageID, reaction.UserID).
		Delete(&model.Reaction{}).Error
}
