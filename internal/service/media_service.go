package service

import (
	"Keepsake/internal/api/config"
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/metrics"
	"Keepsake/internal/pkg/minio"
	"Keepsake/internal/pkg/redis"
	"Keepsake/internal/pkg/util"
	"bytes"
	"context"
	"io"
	log "log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// ObjectStore 对象存储
type ObjectStore interface {
	PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error)
	Stat(ctx context.Context, key string) (*minio.ObjectMeta, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type MediaService interface {
	Sign(ctx context.Context, scope Scope, req *dto.SignUploadDTO) (*dto.UploadSignatureDTO, error)
	// Claim 校验待确认上传并返回对象信息
	Claim(ctx context.Context, scope Scope, objectKey string) (*minio.ObjectMeta, error)
	Release(ctx context.Context, objectKey string)
	Thumbnail(ctx context.Context, objectKey string) (string, error)
	DeleteObjects(ctx context.Context, keys ...string)
	PublicURL(key string) string
	// CleanupPending 删除超时未确认的上传，返回清理数量
	CleanupPending(ctx context.Context) (int, error)
}

type mediaServiceImpl struct {
	store      ObjectStore
	presign    time.Duration
	pendingTTL time.Duration
	thumbWidth int
	now        func() time.Time
}

func NewMediaService(store ObjectStore, cfg config.MediaConfig) MediaService {
	s := &mediaServiceImpl{
		store:      store,
		presign:    time.Duration(cfg.PresignMinutes) * time.Minute,
		pendingTTL: time.Duration(cfg.PendingTTLHours) * time.Hour,
		thumbWidth: cfg.ThumbWidth,
		now:        time.Now,
	}
	if s.presign <= 0 {
		s.presign = 15 * time.Minute
	}
	if s.pendingTTL <= 0 {
		s.pendingTTL = 24 * time.Hour
	}
	if s.thumbWidth <= 0 {
		s.thumbWidth = 320
	}
	return s
}

func (s *mediaServiceImpl) Sign(ctx context.Context, scope Scope, req *dto.SignUploadDTO) (*dto.UploadSignatureDTO, error) {
	if err := scope.Paired(); err != nil {
		return nil, err
	}
	contentType := util.DetectContentType(req.Filename, req.ContentType)
	if !util.IsMediaType(contentType) {
		return nil, ErrFileNotSupported
	}

	now := s.now()
	key := util.BuildObjectKey(scope.CoupleID, req.Filename, now)
	uploadURL, err := s.store.PresignPut(ctx, key, s.presign)
	if err != nil {
		return nil, err
	}

	pending, err := json.Marshal(&dto.MediaPending{
		UserID:      scope.UserID,
		CoupleID:    scope.CoupleID,
		ContentType: contentType,
		CreatedAt:   now.Unix(),
	})
	if err != nil {
		return nil, err
	}
	if err = redis.HSet(ctx, consts.MediaPendingKey, key, pending); err != nil {
		return nil, err
	}

	return &dto.UploadSignatureDTO{
		ObjectKey: key,
		UploadURL: uploadURL,
		Method:    http.MethodPut,
		Headers:   map[string]string{"Content-Type": contentType},
		PublicURL: s.store.PublicURL(key),
		ExpiresAt: now.Add(s.presign),
	}, nil
}

func (s *mediaServiceImpl) Claim(ctx context.Context, scope Scope, objectKey string) (*minio.ObjectMeta, error) {
	if !util.OwnsObjectKey(scope.CoupleID, objectKey) {
		return nil, ErrMediaNotPending
	}
	raw, err := redis.HGet(ctx, consts.MediaPendingKey, objectKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrMediaNotPending
	}
	var pending dto.MediaPending
	if err = json.Unmarshal([]byte(raw), &pending); err != nil || pending.CoupleID != scope.CoupleID {
		return nil, ErrMediaNotPending
	}

	meta, err := s.store.Stat(ctx, objectKey)
	if err != nil {
		log.WarnContext(ctx, "pending object not uploaded", "key", objectKey, "err", err)
		return nil, ErrFileNotExist
	}
	if meta.ContentType == "" || meta.ContentType == "application/octet-stream" {
		meta.ContentType = pending.ContentType
	}
	if !util.IsMediaType(meta.ContentType) {
		return nil, ErrFileNotSupported
	}
	return meta, nil
}

func (s *mediaServiceImpl) Release(ctx context.Context, objectKey string) {
	if err := redis.HDel(ctx, consts.MediaPendingKey, objectKey); err != nil {
		log.WarnContext(ctx, "release pending media failed", "key", objectKey, "err", err)
	}
}

// Thumbnail 生成缩略图并返回其公开地址
func (s *mediaServiceImpl) Thumbnail(ctx context.Context, objectKey string) (string, error) {
	reader, err := s.store.Get(ctx, objectKey)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = reader.Close()
	}()

	thumb, _, err := util.MakeThumbnail(reader, s.thumbWidth)
	if err != nil {
		return "", err
	}
	thumbKey := util.ThumbKey(objectKey)
	if err = s.store.Put(ctx, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		return "", err
	}
	return s.store.PublicURL(thumbKey), nil
}

func (s *mediaServiceImpl) DeleteObjects(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			log.WarnContext(ctx, "delete object failed", "key", key, "err", err)
		}
	}
}

func (s *mediaServiceImpl) PublicURL(key string) string {
	return s.store.PublicURL(key)
}

func (s *mediaServiceImpl) CleanupPending(ctx context.Context) (int, error) {
	entries, err := redis.HGetAll(ctx, consts.MediaPendingKey)
	if err != nil {
		return 0, err
	}
	deadline := s.now().Add(-s.pendingTTL).Unix()
	cleaned := 0
	for key, raw := range entries {
		var pending dto.MediaPending
		if err = json.Unmarshal([]byte(raw), &pending); err == nil && pending.CreatedAt > deadline {
			continue
		}
		if err = s.store.Delete(ctx, key); err != nil {
			log.WarnContext(ctx, "cleanup object failed", "key", key, "err", err)
			continue
		}
		if err = redis.HDel(ctx, consts.MediaPendingKey, key); err != nil {
			return cleaned, err
		}
		cleaned++
	}
	metrics.MediaCleaned.Add(float64(cleaned))
	return cleaned, nil
}
