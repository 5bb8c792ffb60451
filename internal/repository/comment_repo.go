package repository

import (
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"errors"

	"gorm.io/gorm"
)

var CommentColumns = Columns{
	"id":         KindUint,
	"image_id":   KindUint,
	"user_id":    KindUint,
	"vault":      KindBool,
	"created_at": KindTime,
}

type CommentRepo interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, coupleID, id uint64) (*model.Comment, error)
	FindComments(ctx context.Context, coupleID uint64, filter rowfilter.Filter, order rowfilter.Order, limit int) ([]*model.Comment, error)
	UpdateContent(ctx context.Context, comment *model.Comment, content string) error
	DeleteComment(ctx context.Context, comment *model.Comment) error
}

type commentRepoImpl struct {
	db *gorm.DB
}

func NewCommentRepo(db *gorm.DB) CommentRepo {
	return &commentRepoImpl{db: db}
}

func (s *commentRepoImpl) CreateComment(ctx context.Context, comment *model.Comment) error {
	return s.db.WithContext(ctx).Create(comment).Error
}

func (s *commentRepoImpl) GetComment(ctx context.Context, coupleID, id uint64) (*model.Comment, error) {
	comment := &model.Comment{}
	err := s.db.WithContext(ctx).Where("id = ? AND couple_id = ?", id, coupleID).First(comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return comment, err
}

func (s *commentRepoImpl) FindComments(ctx context.Context, coupleID uint64, filter rowfilter.Filter, order rowfilter.Order, limit int) ([]*model.Comment, error) {
	db, err := CommentColumns.Where(s.db.WithContext(ctx).Where("couple_id = ?", coupleID), filter)
	if err != nil {
		return nil, err
	}
	if db, err = CommentColumns.OrderBy(db, order, rowfilter.Asc("created_at")); err != nil {
		return nil, err
	}
	comments := make([]*model.Comment, 0)
	err = db.Limit(clampLimit(limit)).Find(&comments).Error
	return comments, err
}

func (s *commentRepoImpl) UpdateContent(ctx context.Context, comment *model.Comment, content string) error {
	if err := s.db.WithContext(ctx).Model(comment).Update("content", content).Error; err != nil {
		return err
	}
	comment.Content = content
	return nil
}

func (s *commentRepoImpl) DeleteComment(ctx context.Context, comment *model.Comment) error {
	return s.db.WithContext(ctx).Delete(comment).Error
}
