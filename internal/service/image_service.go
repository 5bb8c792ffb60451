package service

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/database"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"Keepsake/internal/pkg/util"
	"Keepsake/internal/repository"
	"context"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

const TableImages = "images"

type ImageService interface {
	Table
	ListDays(ctx context.Context, scope Scope, vault bool) ([]*repository.DayAlbum, error)
	Close()
}

type imageServiceImpl struct {
	imageRepo repository.ImageRepo
	media     MediaService
	publisher realtime.Publisher
	now       func() time.Time

	thumbChan chan *model.Image
	wg        sync.WaitGroup
	stopChan  chan struct{}
}

// NewImageService 启动缩略图工作池
func NewImageService(imageRepo repository.ImageRepo, media MediaService, publisher realtime.Publisher) ImageService {
	s := &imageServiceImpl{
		imageRepo: imageRepo,
		media:     media,
		publisher: publisher,
		now:       time.Now,
		thumbChan: make(chan *model.Image, 256),
		stopChan:  make(chan struct{}),
	}

	workerCount := 2
	s.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go s.thumbnailWorker()
	}
	return s
}

func (s *imageServiceImpl) Name() string { return TableImages }

func (s *imageServiceImpl) Select(ctx context.Context, scope Scope, q Query) (any, error) {
	filter, err := ScopeVault(q.Filter, scope, s.now())
	if err != nil {
		return nil, err
	}
	return s.imageRepo.FindImages(ctx, scope.CoupleID, filter, q.Order, q.Limit)
}

// Insert 确认已直传的对象并入库
func (s *imageServiceImpl) Insert(ctx context.Context, scope Scope, body []byte) (any, error) {
	req := &dto.CreateImageDTO{}
	if err := decodeBody(body, req); err != nil {
		return nil, err
	}
	if req.Vault && !scope.VaultOpen(s.now()) {
		return nil, ErrVaultLocked
	}

	meta, err := s.media.Claim(ctx, scope, req.ObjectKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	takenAt := now
	if req.TakenAt != nil && !req.TakenAt.IsZero() {
		takenAt = *req.TakenAt
	}
	day := req.Day
	if day == "" {
		day = takenAt.Format(consts.DayLayout)
	}

	img := &model.Image{
		CoupleID:  scope.CoupleID,
		OwnerID:   scope.UserID,
		ObjectKey: req.ObjectKey,
		URL:       s.media.PublicURL(req.ObjectKey),
		MimeType:  meta.ContentType,
		Size:      meta.Size,
		Width:     req.Width,
		Height:    req.Height,
		Caption:   strings.TrimSpace(req.Caption),
		Vault:     req.Vault,
		Day:       day,
		ClientID:  req.ClientID,
		TakenAt:   takenAt,
	}
	if err = s.imageRepo.CreateImage(ctx, img); err != nil {
		if database.IsDuplicateEntry(err) {
			return nil, ErrActionDuplicate
		}
		return nil, err
	}
	s.media.Release(ctx, req.ObjectKey)
	publishChange(s.publisher, TableImages, realtime.Insert, img.CoupleID, img.Vault, img, nil)

	if util.IsImageType(img.MimeType) {
		select {
		case s.thumbChan <- img:
		default:
			log.WarnContext(ctx, "thumbnail queue full", "image_id", img.ID)
		}
	}
	return img, nil
}

func (s *imageServiceImpl) Update(ctx context.Context, scope Scope, filter rowfilter.Filter, body []byte) (int64, error) {
	req := &dto.UpdateImageDTO{}
	if err := decodeBody(body, req); err != nil {
		return 0, err
	}
	img, err := s.load(ctx, scope, filter)
	if err != nil {
		return 0, err
	}
	old := *img

	updates := map[string]interface{}{}
	if req.Caption != nil {
		updates["caption"] = strings.TrimSpace(*req.Caption)
	}
	if req.Day != nil {
		updates["day"] = *req.Day
	}
	if req.Vault != nil && *req.Vault != img.Vault {
		if !scope.VaultOpen(s.now()) {
			return 0, ErrVaultLocked
		}
		updates["vault"] = *req.Vault
	}
	if len(updates) == 0 {
		return 0, nil
	}
	if err = s.imageRepo.UpdateImage(ctx, img, updates); err != nil {
		return 0, err
	}

	// 换日或进出私密相册时，旧视图需要移除、新视图需要插入
	if old.Vault != img.Vault || old.Day != img.Day {
		publishChange(s.publisher, TableImages, realtime.Delete, img.CoupleID, old.Vault, nil, &old)
		publishChange(s.publisher, TableImages, realtime.Insert, img.CoupleID, img.Vault, img, nil)
	} else {
		publishChange(s.publisher, TableImages, realtime.Update, img.CoupleID, img.Vault, img, &old)
	}
	return 1, nil
}

func (s *imageServiceImpl) Delete(ctx context.Context, scope Scope, filter rowfilter.Filter) (int64, error) {
	img, err := s.load(ctx, scope, filter)
	if err != nil {
		return 0, err
	}
	if err = s.imageRepo.DeleteImage(ctx, img); err != nil {
		return 0, err
	}
	publishChange(s.publisher, TableImages, realtime.Delete, img.CoupleID, img.Vault, nil, img)

	keys := []string{img.ObjectKey}
	if img.ThumbURL != "" {
		keys = append(keys, util.ThumbKey(img.ObjectKey))
	}
	go func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.media.DeleteObjects(cleanupCtx, keys...)
	}()
	return 1, nil
}

// ListDays 按天相册，封面优先使用缩略图
func (s *imageServiceImpl) ListDays(ctx context.Context, scope Scope, vault bool) ([]*repository.DayAlbum, error) {
	if err := scope.Paired(); err != nil {
		return nil, err
	}
	if vault && !scope.VaultOpen(s.now()) {
		return nil, ErrVaultLocked
	}
	days, err := s.imageRepo.ListDays(ctx, scope.CoupleID, vault)
	if err != nil {
		return nil, err
	}

	coverIDs := make([]uint64, 0, len(days))
	for _, d := range days {
		coverIDs = append(coverIDs, d.CoverID)
	}
	covers, err := s.imageRepo.GetImagesByIds(ctx, coverIDs)
	if err != nil {
		return nil, err
	}
	urls := make(map[uint64]string, len(covers))
	for _, c := range covers {
		urls[c.ID] = c.URL
		if c.ThumbURL != "" {
			urls[c.ID] = c.ThumbURL
		}
	}
	for _, d := range days {
		d.CoverURL = urls[d.CoverID]
	}
	return days, nil
}

// load 按 id=eq.N 取出照片并校验私密相册权限
func (s *imageServiceImpl) load(ctx context.Context, scope Scope, filter rowfilter.Filter) (*model.Image, error) {
	id, err := idFilter(filter, "id")
	if err != nil {
		return nil, err
	}
	img, err := s.imageRepo.GetImage(ctx, scope.CoupleID, id)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrImageNotFound
	}
	if img.Vault && !scope.VaultOpen(s.now()) {
		return nil, ErrVaultLocked
	}
	return img, nil
}

func (s *imageServiceImpl) Close() {
	close(s.stopChan)
	s.wg.Wait()
	log.Info("ImageService shut down gracefully")
}

func (s *imageServiceImpl) thumbnailWorker() {
	defer s.wg.Done()
	for {
		select {
		case img := <-s.thumbChan:
			s.makeThumbnail(img)
		case <-s.stopChan:
			return
		}
	}
}

func (s *imageServiceImpl) makeThumbnail(img *model.Image) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	thumbURL, err := s.media.Thumbnail(ctx, img.ObjectKey)
	if err != nil {
		log.Warn("thumbnail failed", "image_id", img.ID, "err", err)
		return
	}
	if err = s.imageRepo.UpdateThumb(ctx, img.ID, thumbURL); err != nil {
		log.Warn("save thumbnail failed", "image_id", img.ID, "err", err)
		return
	}
	old := *img
	updated := *img
	updated.ThumbURL = thumbURL
	updated.UpdatedAt = time.Now()
	publishChange(s.publisher, TableImages, realtime.Update, img.CoupleID, img.Vault, &updated, &old)
}
