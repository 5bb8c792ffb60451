package dto

import "time"

type UserDTO struct {
	ID        uint64    `json:"id"`
	Username  string    `json:"username"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatar_url"`
	CoupleID  uint64    `json:"couple_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateProfileDTO 修改昵称或头像
type UpdateProfileDTO struct {
	Nickname  string `json:"nickname" validate:"omitempty,min=1,max=15"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// TokenDTO 登录或配对后签发的令牌
type TokenDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *UserDTO  `json:"user,omitempty"`
}
