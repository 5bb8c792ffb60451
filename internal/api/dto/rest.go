package dto

import "time"

// CreateImageDTO 上传完成后确认入库
type CreateImageDTO struct {
	ObjectKey string     `json:"object_key" validate:"required,max=255"`
	Caption   string     `json:"caption" validate:"max=500"`
	Vault     bool       `json:"vault"`
	Day       string     `json:"day" validate:"omitempty,datetime=2006-01-02"`
	Width     int        `json:"width" validate:"min=0"`
	Height    int        `json:"height" validate:"min=0"`
	TakenAt   *time.Time `json:"taken_at"`
	ClientID  string     `json:"client_id" validate:"max=64"`
}

// UpdateImageDTO 修改说明、日期或移入移出私密相册
type UpdateImageDTO struct {
	Caption *string `json:"caption" validate:"omitempty,max=500"`
	Day     *string `json:"day" validate:"omitempty,datetime=2006-01-02"`
	Vault   *bool   `json:"vault"`
}

type CreateCommentDTO struct {
	ImageID  uint64 `json:"image_id" validate:"required"`
	Content  string `json:"content" validate:"required,max=1000"`
	ClientID string `json:"client_id" validate:"max=64"`
}

type UpdateCommentDTO struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type ReactDTO struct {
	ImageID uint64 `json:"image_id" validate:"required"`
	Emoji   string `json:"emoji" validate:"required,max=16"`
}

// ReactionDTO 表态，ID 为 "<image_id>:<user_id>"
type ReactionDTO struct {
	ID        string    `json:"id"`
	ImageID   uint64    `json:"image_id"`
	UserID    uint64    `json:"user_id"`
	CoupleID  uint64    `json:"couple_id"`
	Emoji     string    `json:"emoji"`
	Vault     bool      `json:"vault"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AffectedDTO 更新或删除影响的行数
type AffectedDTO struct {
	Affected int64 `json:"affected"`
}
