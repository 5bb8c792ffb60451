package dto

import "time"

// SignUploadDTO 申请上传签名
type SignUploadDTO struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	ContentType string `json:"content_type" validate:"required"`
}

// UploadSignatureDTO 预签名直传信息，客户端以 PUT 将文件写入 UploadURL
type UploadSignatureDTO struct {
	ObjectKey string            `json:"object_key"`
	UploadURL string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	PublicURL string            `json:"public_url"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// MediaPending 待确认上传记录，存于 redis hash
type MediaPending struct {
	UserID      uint64 `json:"user_id"`
	CoupleID    uint64 `json:"couple_id"`
	ContentType string `json:"content_type"`
	CreatedAt   int64  `json:"created_at"`
}
