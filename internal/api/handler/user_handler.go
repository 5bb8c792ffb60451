package handler

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/response"
	"Keepsake/internal/pkg/util"
	"Keepsake/internal/service"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userSvc service.UserService
}

func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{
		userSvc: userSvc,
	}
}

func (s *UserHandler) Register(c *gin.Context) {
	var registerDTO dto.RegisterDTO
	err := bind(c, &registerDTO)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&registerDTO); err != nil {
		response.Error(c, err)
		return
	}
	user, err := s.userSvc.Register(c.Request.Context(), &registerDTO)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

func (s *UserHandler) Login(c *gin.Context) {
	var loginDTO dto.CredentialDTO
	err := bind(c, &loginDTO)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&loginDTO); err != nil {
		response.Error(c, err)
		return
	}
	token, err := s.userSvc.Login(c.Request.Context(), &loginDTO)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, token)
}

func (s *UserHandler) Logout(c *gin.Context) {
	err := s.userSvc.Logout(c.Request.Context(), c.GetString(consts.ContextToken))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *UserHandler) GetUserInfo(c *gin.Context) {
	userID := c.GetUint64(consts.ContextUserID)
	userDTO, err := s.userSvc.GetUserInfo(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, userDTO)
}

func (s *UserHandler) UpdateProfile(c *gin.Context) {
	userID := c.GetUint64(consts.ContextUserID)
	var profile dto.UpdateProfileDTO
	err := bind(c, &profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&profile); err != nil {
		response.Error(c, err)
		return
	}
	userDTO, err := s.userSvc.UpdateProfile(c.Request.Context(), userID, &profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, userDTO)
}

// RefreshToken 配对状态变化后重新签发令牌
func (s *UserHandler) RefreshToken(c *gin.Context) {
	token, err := s.userSvc.IssueToken(c.Request.Context(), c.GetUint64(consts.ContextUserID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, token)
}
