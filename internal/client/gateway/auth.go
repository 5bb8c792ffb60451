package gateway

import (
	"Keepsake/internal/api/dto"
	"context"
	"net/http"
)

// Register 注册后自动登录
func (c *Client) Register(ctx context.Context, username, password, nickname string) (*User, error) {
	req := &dto.RegisterDTO{Username: username, Password: password, Nickname: nickname}
	if err := c.call(ctx, http.MethodPost, "/user/register", nil, req, nil); err != nil {
		return nil, err
	}
	return c.Login(ctx, username, password)
}

func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	var res dto.TokenDTO
	req := &dto.CredentialDTO{Username: username, Password: password}
	if err := c.call(ctx, http.MethodPost, "/user/login", nil, req, &res); err != nil {
		return nil, err
	}
	c.setToken(res.Token, res.User)
	return res.User, nil
}

// Resume 用已保存的令牌恢复当前用户
func (c *Client) Resume(ctx context.Context) (*User, error) {
	if token, _ := c.session(); token == "" {
		return nil, ErrAuth
	}
	var user User
	if err := c.call(ctx, http.MethodGet, "/user/me", nil, nil, &user); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.user = &user
	c.mu.Unlock()
	return &user, nil
}

// Logout 服务端作废令牌，本地会话无论成功与否都会清除
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/user/logout", nil, nil, nil)
	c.mu.Lock()
	c.user = nil
	c.vaultToken = ""
	c.mu.Unlock()
	c.setToken("", nil)
	_ = c.Close()
	return err
}

// Pair code 为空时创建邀请，否则加入对方的空间；成功后令牌携带 couple_id
func (c *Client) Pair(ctx context.Context, code string) (*dto.CoupleDTO, error) {
	var res dto.PairResultDTO
	var err error
	if code == "" {
		err = c.call(ctx, http.MethodPost, "/couple/invite", nil, nil, &res)
	} else {
		err = c.call(ctx, http.MethodPost, "/couple/join", nil, &dto.JoinCoupleDTO{Code: code}, &res)
	}
	if err != nil {
		return nil, err
	}
	c.setToken(res.Token, res.User)
	return res.Couple, nil
}

func (c *Client) Couple(ctx context.Context) (*dto.CoupleDTO, error) {
	var res dto.CoupleDTO
	if err := c.call(ctx, http.MethodGet, "/couple", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SetVaultPassword(ctx context.Context, oldPassword, newPassword string) error {
	req := &dto.VaultPasswordDTO{OldPassword: oldPassword, NewPassword: newPassword}
	return c.call(ctx, http.MethodPut, "/vault/password", nil, req, nil)
}

// UnlockVault 解锁后的请求与订阅自动携带凭证
func (c *Client) UnlockVault(ctx context.Context, password string) (*dto.VaultSessionDTO, error) {
	var res dto.VaultSessionDTO
	if err := c.call(ctx, http.MethodPost, "/vault/unlock", nil, &dto.VaultUnlockDTO{Password: password}, &res); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.vaultToken = res.VaultToken
	c.mu.Unlock()
	return &res, nil
}

func (c *Client) LockVault(ctx context.Context) error {
	err := c.call(ctx, http.MethodPost, "/vault/lock", nil, nil, nil)
	c.mu.Lock()
	c.vaultToken = ""
	c.mu.Unlock()
	return err
}
