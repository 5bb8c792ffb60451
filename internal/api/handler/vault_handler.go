package handler

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/response"
	"Keepsake/internal/pkg/util"
	"Keepsake/internal/service"

	"github.com/gin-gonic/gin"
)

type VaultHandler struct {
	vaultSvc service.VaultService
}

func NewVaultHandler(vaultSvc service.VaultService) *VaultHandler {
	return &VaultHandler{vaultSvc: vaultSvc}
}

func (s *VaultHandler) SetPassword(c *gin.Context) {
	var req dto.VaultPasswordDTO
	err := bind(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err = s.vaultSvc.SetPassword(c.Request.Context(), scopeOf(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Unlock 校验密码并签发限时解锁凭证，后续请求以 X-Vault-Token 携带
func (s *VaultHandler) Unlock(c *gin.Context) {
	var req dto.VaultUnlockDTO
	err := bind(c, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err = util.ValidateDTO(&req); err != nil {
		response.Error(c, err)
		return
	}
	session, err := s.vaultSvc.Unlock(c.Request.Context(), scopeOf(c), req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, session)
}

func (s *VaultHandler) Lock(c *gin.Context) {
	if err := s.vaultSvc.Lock(c.Request.Context(), c.GetHeader(consts.HeaderVault)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
