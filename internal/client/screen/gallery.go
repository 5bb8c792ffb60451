package screen

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/ledger"
	"Keepsake/internal/client/viewer"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"io"
	"sync/atomic"
)

// UploadFile 待上传的照片或视频
type UploadFile struct {
	Name        string
	ContentType string
	Body        io.Reader
	Size        int64
	Caption     string
	// OnProgress 可为 nil，在上传协程中调用
	OnProgress func(gateway.Progress)
}

// Gallery 照片列表会话，DayGallery 与 Vault 共用
type Gallery struct {
	*Feed[Photo]
	opts  sessionOptions
	day   string
	vault bool
}

// NewDayGallery 某一天的公开照片
func NewDayGallery(gw Gateway, day string, opts ...SessionOption) *Gallery {
	return newGallery(gw, day, false, collect(opts))
}

func newGallery(gw Gateway, day string, vault bool, o sessionOptions) *Gallery {
	filter := rowfilter.Filter{rowfilter.Eq("vault", vault)}
	if day != "" {
		filter = append(rowfilter.Filter{rowfilter.Eq("day", day)}, filter...)
	}
	return &Gallery{
		Feed: NewFeed(gw, FeedConfig[Photo]{
			Table:  tableImages,
			Filter: filter,
			Query:  gateway.Query{Order: rowfilter.Asc("taken_at")},
			Decode: DecodePhoto,
			Clock:  o.clock,
		}),
		opts:  o,
		day:   day,
		vault: vault,
	}
}

func (g *Gallery) Day() string { return g.day }

// Upload 先展示占位，直传对象存储后确认入库
func (g *Gallery) Upload(ctx context.Context, f UploadFile) (ledger.Entity[Photo], error) {
	photo := Photo{Caption: f.Caption, Day: g.day, Vault: g.vault, MimeType: f.ContentType}
	return g.Submit(ctx, photo, func(ctx context.Context, tempID string, p Photo) (gateway.Row, error) {
		task := g.gw.UploadMedia(ctx, f.Name, f.ContentType, f.Body, f.Size)
		for progress := range task.Progress {
			if f.OnProgress != nil {
				f.OnProgress(progress)
			}
		}
		res := <-task.Done
		if res.Err != nil {
			return nil, res.Err
		}
		return g.gw.Insert(ctx, tableImages, &dto.CreateImageDTO{
			ObjectKey: res.ObjectKey,
			Caption:   p.Caption,
			Vault:     p.Vault,
			Day:       p.Day,
			ClientID:  tempID,
		})
	})
}

func (g *Gallery) Delete(ctx context.Context, id string) error {
	return g.Remove(ctx, id, func(ctx context.Context, id string) error {
		return g.gw.Delete(ctx, tableImages, rowfilter.Filter{rowfilter.Eq("id", id)})
	})
}

// SetVault 移入或移出私密相册，照片随之离开当前列表
func (g *Gallery) SetVault(ctx context.Context, id string, vault bool) error {
	if vault == g.vault {
		return nil
	}
	return g.Remove(ctx, id, func(ctx context.Context, id string) error {
		return g.gw.Update(ctx, tableImages, rowfilter.Filter{rowfilter.Eq("id", id)}, &dto.UpdateImageDTO{Vault: &vault})
	})
}

// Slideshow 返回绑定列表长度的浏览控制器，调用方负责 Close，关闭后解除绑定
func (g *Gallery) Slideshow() *viewer.Controller {
	v := viewer.New(g.Len(), g.opts.viewerOptions()...)
	unbind := g.OnChange(func(items []ledger.Entity[Photo]) {
		v.SetItemCount(len(items))
	})
	v.OnClose(unbind)
	return v
}

// Vault 私密相册，解锁前不会加载或订阅
type Vault struct {
	*Gallery
	unlocked atomic.Bool
}

func NewVault(gw Gateway, opts ...SessionOption) *Vault {
	return &Vault{Gallery: newGallery(gw, "", true, collect(opts))}
}

// Unlock 校验密码后打开列表
func (v *Vault) Unlock(ctx context.Context, password string) error {
	if _, ok := v.gw.CurrentUser(); !ok {
		return ErrAuth
	}
	if _, err := v.gw.UnlockVault(ctx, password); err != nil {
		return classify("unlock vault", err)
	}
	v.unlocked.Store(true)
	return v.Open(ctx)
}

func (v *Vault) Open(ctx context.Context) error {
	if !v.unlocked.Load() {
		return ErrVaultLocked
	}
	return v.Gallery.Open(ctx)
}

func (v *Vault) Upload(ctx context.Context, f UploadFile) (ledger.Entity[Photo], error) {
	if !v.unlocked.Load() {
		return ledger.Entity[Photo]{}, ErrVaultLocked
	}
	return v.Gallery.Upload(ctx, f)
}
