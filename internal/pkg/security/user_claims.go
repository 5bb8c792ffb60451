package security

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserClaims Token 中携带的用户与情侣空间信息
type UserClaims struct {
	UserID   uint64 `json:"user_id"`
	CoupleID uint64 `json:"couple_id"`
	jwt.RegisteredClaims
}
