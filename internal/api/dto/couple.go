package dto

import "time"

type CoupleDTO struct {
	ID               uint64    `json:"id"`
	InviteCode       string    `json:"invite_code,omitempty"`
	UserAID          uint64    `json:"user_a_id"`
	UserBID          uint64    `json:"user_b_id"`
	HasVaultPassword bool      `json:"has_vault_password"`
	Partner          *UserDTO  `json:"partner,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type JoinCoupleDTO struct {
	Code string `json:"code" validate:"required,min=6,max=16"`
}

// PairResultDTO 配对结果，附带包含 couple_id 的新令牌
type PairResultDTO struct {
	Couple *CoupleDTO `json:"couple"`
	TokenDTO
}

// VaultSessionDTO 私密相册解锁凭证
type VaultSessionDTO struct {
	VaultToken string    `json:"vault_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}
