package dto

// VaultPasswordDTO 设置或修改私密相册密码，首次设置时 OldPassword 为空
type VaultPasswordDTO struct {
	OldPassword string `json:"old_password" validate:"omitempty,min=4,max=32"`
	NewPassword string `json:"new_password" validate:"required,min=4,max=32"`
}

type VaultUnlockDTO struct {
	Password string `json:"password" validate:"required"`
}
