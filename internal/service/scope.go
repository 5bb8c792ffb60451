package service

import (
	"Keepsake/internal/pkg/rowfilter"
	"time"
)

// Scope 请求方身份，所有查询与写入都限定在其情侣空间内
type Scope struct {
	UserID   uint64
	CoupleID uint64
	// VaultUntil 私密相册解锁截止时间，零值表示未解锁
	VaultUntil time.Time
}

// VaultOpen 私密相册当前是否可访问
func (s Scope) VaultOpen(now time.Time) bool {
	return now.Before(s.VaultUntil)
}

// Paired 是否已加入情侣空间
func (s Scope) Paired() error {
	if s.CoupleID == 0 {
		return ErrNotPaired
	}
	return nil
}

// ScopeVault 约束过滤条件中的私密相册可见性：未解锁时只能看到非私密数据，
// 显式请求私密数据则必须已解锁
func ScopeVault(filter rowfilter.Filter, scope Scope, now time.Time) (rowfilter.Filter, error) {
	asksVault := false
	hasVault := false
	for _, c := range filter {
		if c.Column != "vault" {
			continue
		}
		hasVault = true
		if !(c.Op == rowfilter.OpEq && c.Value == "false") {
			asksVault = true
		}
	}
	open := scope.VaultOpen(now)
	if asksVault && !open {
		return nil, ErrVaultLocked
	}
	if !hasVault && !open {
		return filter.With(rowfilter.Eq("vault", false)), nil
	}
	return filter, nil
}
