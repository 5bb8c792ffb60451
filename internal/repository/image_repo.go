package repository

import (
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"errors"

	"gorm.io/gorm"
)

// ImageColumns 照片表对外开放的过滤与排序列
var ImageColumns = Columns{
	"id":         KindUint,
	"owner_id":   KindUint,
	"day":        KindString,
	"vault":      KindBool,
	"mime_type":  KindString,
	"created_at": KindTime,
	"taken_at":   KindTime,
}

// DayAlbum 按天聚合的相册
type DayAlbum struct {
	Day      string `json:"day"`
	Count    int64  `json:"count"`
	CoverID  uint64 `json:"cover_id"`
	CoverURL string `json:"cover_url" gorm:"-"`
}

type ImageRepo interface {
	CreateImage(ctx context.Context, img *model.Image) error
	GetImage(ctx context.Context, coupleID, id uint64) (*model.Image, error)
	GetImagesByIds(ctx context.Context, ids []uint64) ([]*model.Image, error)
	FindImages(ctx context.Context, coupleID uint64, filter rowfilter.Filter, order rowfilter.Order, limit int) ([]*model.Image, error)
	UpdateImage(ctx context.Context, img *model.Image, updates map[string]interface{}) error
	UpdateThumb(ctx context.Context, id uint64, thumbURL string) error
	DeleteImage(ctx context.Context, img *model.Image) error
	ListDays(ctx context.Context, coupleID uint64, vault bool) ([]*DayAlbum, error)
}

type imageRepoImpl struct {
	db *gorm.DB
}

func NewImageRepo(db *gorm.DB) ImageRepo {
	return &imageRepoImpl{db: db}
}

func (s *imageRepoImpl) CreateImage(ctx context.Context, img *model.Image) error {
	return s.db.WithContext(ctx).Create(img).Error
}

func (s *imageRepoImpl) GetImage(ctx context.Context, coupleID, id uint64) (*model.Image, error) {
	img := &model.Image{}
	err := s.db.WithContext(ctx).Where("id = ? AND couple_id = ?", id, coupleID).First(img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return img, err
}

func (s *imageRepoImpl) GetImagesByIds(ctx context.Context, ids []uint64) ([]*model.Image, error) {
	images := make([]*model.Image, 0, len(ids))
	if len(ids) == 0 {
		return images, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&images).Error
	return images, err
}

// FindImages 情侣空间内按过滤条件查询
func (s *imageRepoImpl) FindImages(ctx context.Context, coupleID uint64, filter rowfilter.Filter, order rowfilter.Order, limit int) ([]*model.Image, error) {
	db, err := ImageColumns.Where(s.db.WithContext(ctx).Where("couple_id = ?", coupleID), filter)
	if err != nil {
		return nil, err
	}
	if db, err = ImageColumns.OrderBy(db, order, rowfilter.Asc("created_at")); err != nil {
		return nil, err
	}
	images := make([]*model.Image, 0)
	err = db.Limit(clampLimit(limit)).Find(&images).Error
	return images, err
}

func (s *imageRepoImpl) UpdateImage(ctx context.Context, img *model.Image, updates map[string]interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(img).Updates(updates).Error; err != nil {
			return err
		}
		// 评论与表态随照片进出私密相册
		if vault, ok := updates["vault"]; ok {
			if err := tx.Model(&model.Comment{}).Where("image_id = ?", img.ID).Update("vault", vault).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Reaction{}).Where("image_id = ?", img.ID).Update("vault", vault).Error; err != nil {
				return err
			}
		}
		return tx.First(img, img.ID).Error
	})
}

func (s *imageRepoImpl) UpdateThumb(ctx context.Context, id uint64, thumbURL string) error {
	return s.db.WithContext(ctx).Model(&model.Image{}).Where("id = ?", id).Update("thumb_url", thumbURL).Error
}

// DeleteImage 删除照片及其评论与表态
func (s *imageRepoImpl) DeleteImage(ctx context.Context, img *model.Image) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", img.ID).Delete(&model.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("image_id = ?", img.ID).Delete(&model.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(img).Error
	})
}

// ListDays 按天聚合，最新的一天在前，封面取当天最早的一张
func (s *imageRepoImpl) ListDays(ctx context.Context, coupleID uint64, vault bool) ([]*DayAlbum, error) {
	days := make([]*DayAlbum, 0)
	err := s.db.WithContext(ctx).Model(&model.Image{}).
		Select("day, COUNT(*) AS count, MIN(id) AS cover_id").
		Where("couple_id = ? AND vault = ?", coupleID, vault).
		Group("day").
		Order("day DESC").
		Scan(&days).Error
	return days, err
}
