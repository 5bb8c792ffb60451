package service

import (
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/minio"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (r *memImageRepo) CreateImage(_ context.Context, img *model.Image) error {
	img.ID = uint64(len(r.images) + 1)
	img.CreatedAt = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	r.images[img.ID] = img
	return nil
}

func (r *memImageRepo) UpdateImage(_ context.Context, img *model.Image, updates map[string]interface{}) error {
	for column, value := range updates {
		switch column {
		case "caption":
			img.Caption = value.(string)
		case "day":
			img.Day = value.(string)
		case "vault":
			img.Vault = value.(bool)
		}
	}
	return nil
}

func (r *memImageRepo) UpdateThumb(_ context.Context, id uint64, thumbURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.thumbs == nil {
		r.thumbs = make(map[uint64]string)
	}
	r.thumbs[id] = thumbURL
	return nil
}

// stubMedia 固定的上传校验结果
type stubMedia struct {
	MediaService
	claimErr error
	mime     string
	released []string
}

func (m *stubMedia) Claim(_ context.Context, _ Scope, objectKey string) (*minio.ObjectMeta, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	return &minio.ObjectMeta{Key: objectKey, Size: 42, ContentType: m.mime}, nil
}

func (m *stubMedia) Release(_ context.Context, objectKey string) {
	m.released = append(m.released, objectKey)
}

func (m *stubMedia) PublicURL(key string) string { return "http://cdn.local/" + key }

func (m *stubMedia) Thumbnail(_ context.Context, objectKey string) (string, error) {
	return "http://cdn.local/thumbs/" + objectKey + ".jpg", nil
}

func newImageFixture(t *testing.T, mime string) (ImageService, *memImageRepo, *stubMedia, *memPublisher) {
	t.Helper()
	repo := &memImageRepo{images: map[uint64]*model.Image{}}
	media := &stubMedia{mime: mime}
	pub := &memPublisher{}
	svc := NewImageService(repo, media, pub)
	t.Cleanup(svc.Close)
	return svc, repo, media, pub
}

func (p *memPublisher) snapshot() []*realtime.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*realtime.ChangeEvent(nil), p.events...)
}

func eventTypes(events []*realtime.ChangeEvent) []realtime.EventType {
	out := make([]realtime.EventType, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}

func TestImageInsertConfirmsClaimedUpload(t *testing.T) {
	svc, repo, media, pub := newImageFixture(t, "video/mp4")
	ctx := context.Background()

	res, err := svc.Insert(ctx, paired, []byte(`{"object_key":"couple/9/a.mp4","caption":" us ","day":"2026-10-19","client_id":"tmp-7"}`))
	require.NoError(t, err)
	img := res.(*model.Image)
	assert.Equal(t, "us", img.Caption)
	assert.Equal(t, "video/mp4", img.MimeType)
	assert.Equal(t, "http://cdn.local/couple/9/a.mp4", img.URL)
	assert.Equal(t, uint64(9), img.CoupleID)
	assert.Len(t, repo.images, 1)
	assert.Equal(t, []string{"couple/9/a.mp4"}, media.released)

	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.Insert, events[0].EventType)
	assert.Equal(t, "tmp-7", events[0].New["client_id"])
	assert.False(t, events[0].Vault)
}

func TestImageInsertRejectsUnclaimedUpload(t *testing.T) {
	svc, repo, media, pub := newImageFixture(t, "image/jpeg")
	ctx := context.Background()

	for _, claimErr := range []error{ErrMediaNotPending, ErrFileNotSupported, ErrFileNotExist} {
		media.claimErr = claimErr
		_, err := svc.Insert(ctx, paired, []byte(`{"object_key":"couple/9/a.jpg","day":"2026-10-19"}`))
		assert.ErrorIs(t, err, claimErr)
	}
	media.claimErr = nil
	_, err := svc.Insert(ctx, paired, []byte(`{"object_key":"couple/9/b.jpg","vault":true}`))
	assert.ErrorIs(t, err, ErrVaultLocked)

	assert.Empty(t, repo.images)
	assert.Empty(t, media.released)
	assert.Empty(t, pub.snapshot())
}

func TestImageMovePublishesDeleteThenInsert(t *testing.T) {
	svc, repo, _, pub := newImageFixture(t, "video/mp4")
	ctx := context.Background()
	repo.images[1] = &model.Image{ID: 1, CoupleID: 9, OwnerID: 1, ObjectKey: "couple/9/a.mp4", Day: "2026-10-19"}
	byID := rowfilter.Filter{rowfilter.Eq("id", 1)}
	unlocked := paired
	unlocked.VaultUntil = time.Now().Add(time.Hour)

	_, err := svc.Update(ctx, paired, byID, []byte(`{"vault":true}`))
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.Empty(t, pub.snapshot())

	n, err := svc.Update(ctx, unlocked, byID, []byte(`{"vault":true}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	events := pub.snapshot()
	require.Equal(t, []realtime.EventType{realtime.Delete, realtime.Insert}, eventTypes(events))
	assert.False(t, events[0].Vault)
	assert.Equal(t, false, events[0].Old["vault"])
	assert.True(t, events[1].Vault)
	assert.Equal(t, true, events[1].New["vault"])

	_, err = svc.Update(ctx, unlocked, byID, []byte(`{"day":"2026-10-20"}`))
	require.NoError(t, err)
	events = pub.snapshot()[2:]
	require.Equal(t, []realtime.EventType{realtime.Delete, realtime.Insert}, eventTypes(events))
	assert.Equal(t, "2026-10-19", events[0].Old["day"])
	assert.Equal(t, "2026-10-20", events[1].New["day"])

	_, err = svc.Update(ctx, unlocked, byID, []byte(`{"caption":"anniversary"}`))
	require.NoError(t, err)
	events = pub.snapshot()[4:]
	require.Equal(t, []realtime.EventType{realtime.Update}, eventTypes(events))
	assert.Equal(t, "anniversary", events[0].New["caption"])
}

func TestImageThumbnailPublishesUpdate(t *testing.T) {
	svc, repo, _, pub := newImageFixture(t, "image/png")

	_, err := svc.Insert(context.Background(), paired, []byte(`{"object_key":"couple/9/a.png","day":"2026-10-19"}`))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	thumb := pub.snapshot()[1]
	assert.Equal(t, realtime.Update, thumb.EventType)
	assert.Equal(t, "http://cdn.local/thumbs/couple/9/a.png.jpg", thumb.New["thumb_url"])
	assert.Equal(t, "", thumb.Old["thumb_url"])

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, "http://cdn.local/thumbs/couple/9/a.png.jpg", repo.thumbs[1])
}
