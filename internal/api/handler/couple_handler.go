package handler

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/response"
	"Keepsake/internal/pkg/util"
	"Keepsake/internal/service"

	"github.com/gin-gonic/gin"
)

type CoupleHandler struct {
	coupleSvc service.CoupleService
}

func NewCoupleHandler(coupleSvc service.CoupleService) *CoupleHandler {
	return &CoupleHandler{coupleSvc: coupleSvc}
}

// CreateInvite 创建情侣空间，返回邀请码与携带 couple_id 的新令牌
func (s *CoupleHandler) CreateInvite(c *gin.Context) {
	res, err := s.coupleSvc.CreateInvite(c.Request.Context(), c.GetUint64(consts.ContextUserID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *CoupleHandler) Join(c *gin.Context) {
	var req dto.JoinCoupleDTO
	err := bind(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := s.coupleSvc.Join(c.Request.Context(), c.GetUint64(consts.ContextUserID), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (s *CoupleHandler) GetCouple(c *gin.Context) {
	res, err := s.coupleSvc.GetCouple(c.Request.Context(), scopeOf(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}
