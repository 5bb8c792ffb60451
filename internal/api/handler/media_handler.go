package handler

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/response"
	"Keepsake/internal/pkg/util"
	"Keepsake/internal/service"
	log "log/slog"

	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	mediaSvc service.MediaService
}

func NewMediaHandler(mediaSvc service.MediaService) *MediaHandler {
	return &MediaHandler{mediaSvc: mediaSvc}
}

// Sign 返回预签名直传地址，文件不经过 API 服务
func (s *MediaHandler) Sign(c *gin.Context) {
	var req dto.SignUploadDTO
	err := bind(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}
	res, err := s.mediaSvc.Sign(c.Request.Context(), scopeOf(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	log.InfoContext(c.Request.Context(), "upload signed", "object_key", res.ObjectKey, "type", req.ContentType)
	response.Success(c, res)
}
