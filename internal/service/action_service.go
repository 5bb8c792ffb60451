package service

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"Keepsake/internal/repository"
	"context"
	"strings"
	"time"
)

const (
	TableComments  = "comments"
	TableReactions = "reactions"
)

// imageGate 评论与表态都挂在照片下，可见性继承照片的私密标记
type imageGate struct {
	imageRepo repository.ImageRepo
	now       func() time.Time
}

func (g imageGate) open(ctx context.Context, scope Scope, imageID uint64) (*model.Image, error) {
	img, err := g.imageRepo.GetImage(ctx, scope.CoupleID, imageID)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrImageNotFound
	}
	if img.Vault && !scope.VaultOpen(g.now()) {
		return nil, ErrVaultLocked
	}
	return img, nil
}

type commentServiceImpl struct {
	imageGate
	commentRepo repository.CommentRepo
	publisher   realtime.Publisher
}

// NewCommentService 照片评论表
func NewCommentService(commentRepo repository.CommentRepo, imageRepo repository.ImageRepo, publisher realtime.Publisher) Table {
	return &commentServiceImpl{
		imageGate:   imageGate{imageRepo: imageRepo, now: time.Now},
		commentRepo: commentRepo,
		publisher:   publisher,
	}
}

func (s *commentServiceImpl) Name() string { return TableComments }

func (s *commentServiceImpl) Select(ctx context.Context, scope Scope, q Query) (any, error) {
	filter, err := ScopeVault(q.Filter, scope, s.now())
	if err != nil {
		return nil, err
	}
	return s.commentRepo.FindComments(ctx, scope.CoupleID, filter, q.Order, q.Limit)
}

func (s *commentServiceImpl) Insert(ctx context.Context, scope Scope, body []byte) (any, error) {
	req := &dto.CreateCommentDTO{}
	if err := decodeBody(body, req); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrParamInvalid
	}
	img, err := s.open(ctx, scope, req.ImageID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		ImageID:  img.ID,
		CoupleID: scope.CoupleID,
		UserID:   scope.UserID,
		Content:  content,
		Vault:    img.Vault,
		ClientID: req.ClientID,
	}
	if err = s.commentRepo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	publishChange(s.publisher, TableComments, realtime.Insert, comment.CoupleID, comment.Vault, comment, nil)
	return comment, nil
}

func (s *commentServiceImpl) Update(ctx context.Context, scope Scope, filter rowfilter.Filter, body []byte) (int64, error) {
	req := &dto.UpdateCommentDTO{}
	if err := decodeBody(body, req); err != nil {
		return 0, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return 0, ErrParamInvalid
	}
	comment, err := s.own(ctx, scope, filter)
	if err != nil {
		return 0, err
	}
	old := *comment
	if err = s.commentRepo.UpdateContent(ctx, comment, content); err != nil {
		return 0, err
	}
	publishChange(s.publisher, TableComments, realtime.Update, comment.CoupleID, comment.Vault, comment, &old)
	return 1, nil
}

func (s *commentServiceImpl) Delete(ctx context.Context, scope Scope, filter rowfilter.Filter) (int64, error) {
	comment, err := s.own(ctx, scope, filter)
	if err != nil {
		return 0, err
	}
	if err = s.commentRepo.DeleteComment(ctx, comment); err != nil {
		return 0, err
	}
	publishChange(s.publisher, TableComments, realtime.Delete, comment.CoupleID, comment.Vault, nil, comment)
	return 1, nil
}

// own 只有作者本人可以修改或删除评论
func (s *commentServiceImpl) own(ctx context.Context, scope Scope, filter rowfilter.Filter) (*model.Comment, error) {
	id, err := idFilter(filter, "id")
	if err != nil {
		return nil, err
	}
	comment, err := s.commentRepo.GetComment(ctx, scope.CoupleID, id)
	if err != nil {
		return nil, err
	}
	if comment == nil {
		return nil, ErrCommentNotFound
	}
	if comment.Vault && !scope.VaultOpen(s.now()) {
		return nil, ErrVaultLocked
	}
	if comment.UserID != scope.UserID {
		return nil, UnauthorizedError
	}
	return comment, nil
}

type reactionServiceImpl struct {
	imageGate
	reactionRepo repository.ReactionRepo
	publisher    realtime.Publisher
}

// NewReactionService 表情表态表，每人每图一条
func NewReactionService(reactionRepo repository.ReactionRepo, imageRepo repository.ImageRepo, publisher realtime.Publisher) Table {
	return &reactionServiceImpl{
		imageGate:    imageGate{imageRepo: imageRepo, now: time.Now},
		reactionRepo: reactionRepo,
		publisher:    publisher,
	}
}

func (s *reactionServiceImpl) Name() string { return TableReactions }

func (s *reactionServiceImpl) Select(ctx context.Context, scope Scope, q Query) (any, error) {
	filter, err := ScopeVault(q.Filter, scope, s.now())
	if err != nil {
		return nil, err
	}
	reactions, err := s.reactionRepo.FindReactions(ctx, scope.CoupleID, filter, q.Order, q.Limit)
	if err != nil {
		return nil, err
	}
	res := make([]*dto.ReactionDTO, 0, len(reactions))
	for _, r := range reactions {
		res = append(res, toReactionDTO(r))
	}
	return res, nil
}

// Insert 重复表态视为修改表情
func (s *reactionServiceImpl) Insert(ctx context.Context, scope Scope, body []byte) (any, error) {
	req := &dto.ReactDTO{}
	if err := decodeBody(body, req); err != nil {
		return nil, err
	}
	img, err := s.open(ctx, scope, req.ImageID)
	if err != nil {
		return nil, err
	}
	old, err := s.reactionRepo.GetReaction(ctx, scope.CoupleID, img.ID, scope.UserID)
	if err != nil {
		return nil, err
	}

	reaction := &model.Reaction{
		ImageID:  img.ID,
		UserID:   scope.UserID,
		CoupleID: scope.CoupleID,
		Emoji:    req.Emoji,
		Vault:    img.Vault,
	}
	created, err := s.reactionRepo.UpsertReaction(ctx, reaction)
	if err != nil {
		return nil, err
	}
	res := toReactionDTO(reaction)
	if created || old == nil {
		publishChange(s.publisher, TableReactions, realtime.Insert, reaction.CoupleID, reaction.Vault, res, nil)
	} else {
		res.UpdatedAt = time.Now()
		publishChange(s.publisher, TableReactions, realtime.Update, reaction.CoupleID, reaction.Vault, res, toReactionDTO(old))
	}
	return res, nil
}

func (s *reactionServiceImpl) Update(context.Context, Scope, rowfilter.Filter, []byte) (int64, error) {
	return 0, ErrMethodNotAllowed
}

// Delete 撤销自己对某张照片的表态，过滤条件为 image_id=eq.N
func (s *reactionServiceImpl) Delete(ctx context.Context, scope Scope, filter rowfilter.Filter) (int64, error) {
	imageID, err := idFilter(filter, "image_id")
	if err != nil {
		return 0, err
	}
	reaction, err := s.reactionRepo.GetReaction(ctx, scope.CoupleID, imageID, scope.UserID)
	if err != nil {
		return 0, err
	}
	if reaction == nil {
		return 0, ErrReactionNotFound
	}
	if reaction.Vault && !scope.VaultOpen(s.now()) {
		return 0, ErrVaultLocked
	}
	if err = s.reactionRepo.DeleteReaction(ctx, reaction); err != nil {
		return 0, err
	}
	publishChange(s.publisher, TableReactions, realtime.Delete, reaction.CoupleID, reaction.Vault, nil, toReactionDTO(reaction))
	return 1, nil
}

func toReactionDTO(r *model.Reaction) *dto.ReactionDTO {
	return &dto.ReactionDTO{
		ID:        model.ReactionID(r.ImageID, r.UserID),
		ImageID:   r.ImageID,
		UserID:    r.UserID,
		CoupleID:  r.CoupleID,
		Emoji:     r.Emoji,
		Vault:     r.Vault,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
