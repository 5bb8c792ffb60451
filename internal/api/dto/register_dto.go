package dto

type RegisterDTO struct {
	Username  string `json:"username" validate:"required,min=4,max=20,alphanum"`
	Password  string `json:"password" validate:"required,min=6,max=32"`
	Nickname  string `json:"nickname" validate:"required,min=1,max=15"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// CredentialDTO 登录凭据
type CredentialDTO struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
