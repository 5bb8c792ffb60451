package screen

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/ledger"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"strconv"
	"strings"
)

// Comments 单张照片的评论与表态
type Comments struct {
	*Feed[Comment]
	Reactions *Feed[Reaction]
	imageID   uint64
}

func NewComments(gw Gateway, imageID uint64, opts ...SessionOption) *Comments {
	o := collect(opts)
	filter := rowfilter.Filter{rowfilter.Eq("image_id", imageID)}
	return &Comments{
		Feed: NewFeed(gw, FeedConfig[Comment]{
			Table:     tableComments,
			Filter:    filter,
			Query:     gateway.Query{Order: rowfilter.Asc("created_at")},
			Decode:    DecodeComment,
			Validator: ledger.NotBlank(func(c Comment) string { return c.Content }),
			Clock:     o.clock,
		}),
		Reactions: NewFeed(gw, FeedConfig[Reaction]{
			Table:     tableReactions,
			Filter:    filter,
			Decode:    DecodeReaction,
			Validator: ledger.NotBlank(func(r Reaction) string { return r.Emoji }),
			Clock:     o.clock,
		}),
		imageID: imageID,
	}
}

func (c *Comments) Open(ctx context.Context) error {
	if err := c.Feed.Open(ctx); err != nil {
		return err
	}
	if err := c.Reactions.Open(ctx); err != nil {
		_ = c.Feed.Close()
		return err
	}
	return nil
}

func (c *Comments) Close() error {
	err := c.Feed.Close()
	if rerr := c.Reactions.Close(); err == nil {
		err = rerr
	}
	return err
}

func (c *Comments) Post(ctx context.Context, text string) (ledger.Entity[Comment], error) {
	comment := Comment{ImageID: c.imageID, Content: strings.TrimSpace(text)}
	return c.Submit(ctx, comment, func(ctx context.Context, tempID string, p Comment) (gateway.Row, error) {
		return c.gw.Insert(ctx, tableComments, &dto.CreateCommentDTO{
			ImageID:  p.ImageID,
			Content:  p.Content,
			ClientID: tempID,
		})
	})
}

func (c *Comments) Delete(ctx context.Context, id string) error {
	return c.Remove(ctx, id, func(ctx context.Context, id string) error {
		return c.gw.Delete(ctx, tableComments, rowfilter.Filter{rowfilter.Eq("id", id)})
	})
}

// React 每人每张照片一个表态，重复调用替换原表态
func (c *Comments) React(ctx context.Context, emoji string) (ledger.Entity[Reaction], error) {
	reaction := Reaction{ImageID: c.imageID, Emoji: strings.TrimSpace(emoji)}
	return c.Reactions.Submit(ctx, reaction, func(ctx context.Context, _ string, r Reaction) (gateway.Row, error) {
		return c.gw.Insert(ctx, tableReactions, &dto.ReactDTO{ImageID: r.ImageID, Emoji: r.Emoji})
	})
}

// Unreact 撤销自己的表态
func (c *Comments) Unreact(ctx context.Context) error {
	user, ok := c.gw.CurrentUser()
	if !ok {
		return ErrAuth
	}
	id := strconv.FormatUint(c.imageID, 10) + ":" + strconv.FormatUint(user.ID, 10)
	return c.Reactions.Remove(ctx, id, func(ctx context.Context, _ string) error {
		return c.gw.Delete(ctx, tableReactions, rowfilter.Filter{rowfilter.Eq("image_id", c.imageID)})
	})
}
