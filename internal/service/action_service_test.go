package service

import (
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"Keepsake/internal/repository"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPublisher struct {
	mu     sync.Mutex
	events []*realtime.ChangeEvent
}

func (p *memPublisher) Publish(_ context.Context, evt *realtime.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

type memImageRepo struct {
	repository.ImageRepo
	images map[uint64]*model.Image

	mu     sync.Mutex
	thumbs map[uint64]string
}

func (r *memImageRepo) GetImage(_ context.Context, coupleID, id uint64) (*model.Image, error) {
	img, ok := r.images[id]
	if !ok || img.CoupleID != coupleID {
		return nil, nil
	}
	return img, nil
}

type memCommentRepo struct {
	comments map[uint64]*model.Comment
	nextID   uint64
}

func (r *memCommentRepo) CreateComment(_ context.Context, c *model.Comment) error {
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	r.comments[c.ID] = c
	return nil
}

func (r *memCommentRepo) GetComment(_ context.Context, coupleID, id uint64) (*model.Comment, error) {
	c, ok := r.comments[id]
	if !ok || c.CoupleID != coupleID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCommentRepo) FindComments(context.Context, uint64, rowfilter.Filter, rowfilter.Order, int) ([]*model.Comment, error) {
	return nil, nil
}

func (r *memCommentRepo) UpdateContent(_ context.Context, c *model.Comment, content string) error {
	c.Content = content
	r.comments[c.ID].Content = content
	return nil
}

func (r *memCommentRepo) DeleteComment(_ context.Context, c *model.Comment) error {
	delete(r.comments, c.ID)
	return nil
}

func newCommentFixture() (Table, *memPublisher) {
	images := &memImageRepo{images: map[uint64]*model.Image{
		1: {ID: 1, CoupleID: 9},
		2: {ID: 2, CoupleID: 9, Vault: true},
		3: {ID: 3, CoupleID: 8},
	}}
	pub := &memPublisher{}
	return NewCommentService(&memCommentRepo{comments: map[uint64]*model.Comment{}}, images, pub), pub
}

func TestCommentInsertPublishes(t *testing.T) {
	svc, pub := newCommentFixture()
	ctx := context.Background()

	res, err := svc.Insert(ctx, paired, []byte(`{"image_id":1,"content":"  so cute  ","client_id":"tmp-1"}`))
	require.NoError(t, err)
	comment := res.(*model.Comment)
	assert.Equal(t, "so cute", comment.Content)
	assert.Equal(t, "tmp-1", comment.ClientID)
	assert.Equal(t, uint64(1), comment.UserID)

	require.Len(t, pub.events, 1)
	evt := pub.events[0]
	assert.Equal(t, TableComments, evt.Table)
	assert.Equal(t, realtime.Insert, evt.EventType)
	assert.Equal(t, uint64(9), evt.CoupleID)
	assert.False(t, evt.Vault)
	assert.Equal(t, "tmp-1", evt.New["client_id"])
}

func TestCommentInheritsVault(t *testing.T) {
	svc, pub := newCommentFixture()
	ctx := context.Background()

	_, err := svc.Insert(ctx, paired, []byte(`{"image_id":2,"content":"secret"}`))
	assert.ErrorIs(t, err, ErrVaultLocked)

	unlocked := paired
	unlocked.VaultUntil = time.Now().Add(time.Minute)
	res, err := svc.Insert(ctx, unlocked, []byte(`{"image_id":2,"content":"secret"}`))
	require.NoError(t, err)
	assert.True(t, res.(*model.Comment).Vault)
	require.Len(t, pub.events, 1)
	assert.True(t, pub.events[0].Vault)
}

func TestCommentInsertRejects(t *testing.T) {
	svc, pub := newCommentFixture()
	ctx := context.Background()

	_, err := svc.Insert(ctx, paired, []byte(`{"image_id":1,"content":"   "}`))
	assert.ErrorIs(t, err, ErrParamInvalid)
	_, err = svc.Insert(ctx, paired, []byte(`{"image_id":3,"content":"other couple"}`))
	assert.ErrorIs(t, err, ErrImageNotFound)
	_, err = svc.Insert(ctx, paired, []byte(`not json`))
	assert.ErrorIs(t, err, ErrParamInvalid)
	assert.Empty(t, pub.events)
}

func TestCommentOnlyAuthorMayChange(t *testing.T) {
	svc, pub := newCommentFixture()
	ctx := context.Background()
	res, err := svc.Insert(ctx, paired, []byte(`{"image_id":1,"content":"first"}`))
	require.NoError(t, err)
	id := rowfilter.Filter{rowfilter.Eq("id", res.(*model.Comment).ID)}

	partner := Scope{UserID: 2, CoupleID: 9}
	_, err = svc.Update(ctx, partner, id, []byte(`{"content":"edited"}`))
	assert.ErrorIs(t, err, UnauthorizedError)
	_, err = svc.Delete(ctx, partner, id)
	assert.ErrorIs(t, err, UnauthorizedError)

	n, err := svc.Update(ctx, paired, id, []byte(`{"content":"edited"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.Delete(ctx, paired, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Delete(ctx, paired, id)
	assert.ErrorIs(t, err, ErrCommentNotFound)

	require.Len(t, pub.events, 3)
	assert.Equal(t, realtime.Update, pub.events[1].EventType)
	assert.Equal(t, "first", pub.events[1].Old["content"])
	assert.Equal(t, "edited", pub.events[1].New["content"])
	assert.Equal(t, realtime.Delete, pub.events[2].EventType)
	assert.Nil(t, pub.events[2].New)
}
