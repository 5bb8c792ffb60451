// Package screen 各界面的会话：首屏加载、实时订阅与乐观写入。
//
// 每个会话持有一个 Feed，Feed 负责一个账本、一个订阅与行解码；
// 网络行在此边界解码为强类型，解码失败的行被丢弃并计数。
package screen

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

const (
	tableMessages  = "messages"
	tableImages    = "images"
	tableComments  = "comments"
	tableReactions = "reactions"
)

var (
	// ErrAuth 无当前用户，写操作在乐观插入之前即被拒绝
	ErrAuth = gateway.ErrAuth
	// ErrVaultLocked 私密相册尚未解锁
	ErrVaultLocked = errors.New("screen: vault is locked")
	ErrNotOpen     = errors.New("screen: feed is not open")
)

// NetworkError 写入或上传失败，乐观记录已回滚
type NetworkError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// classify 认证错误原样返回，其余归为 NetworkError
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gateway.ErrAuth) {
		return err
	}
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		return &NetworkError{Op: op, Err: err, Retryable: apiErr.Code >= http.StatusInternalServerError}
	}
	var upErr *gateway.UploadError
	if errors.As(err, &upErr) {
		return &NetworkError{Op: op, Err: err, Retryable: upErr.Status >= http.StatusInternalServerError || upErr.Status == http.StatusForbidden}
	}
	return &NetworkError{Op: op, Err: err, Retryable: true}
}

// Subscription 实时订阅句柄
type Subscription interface {
	Unsubscribe() error
}

// Gateway 会话依赖的远端能力，*gateway.Client 经 Connect 适配
type Gateway interface {
	CurrentUser() (*gateway.User, bool)
	Select(ctx context.Context, table string, filter rowfilter.Filter, q gateway.Query) ([]gateway.Row, error)
	Insert(ctx context.Context, table string, record any) (gateway.Row, error)
	Update(ctx context.Context, table string, filter rowfilter.Filter, patch any) error
	Delete(ctx context.Context, table string, filter rowfilter.Filter) error
	Subscribe(ctx context.Context, table string, filter rowfilter.Filter, onEvent gateway.Handler) (Subscription, error)
	UploadMedia(ctx context.Context, filename, contentType string, r io.Reader, size int64) *gateway.UploadTask
	UnlockVault(ctx context.Context, password string) (*dto.VaultSessionDTO, error)
}

type clientGateway struct {
	*gateway.Client
}

func Connect(c *gateway.Client) Gateway {
	return clientGateway{Client: c}
}

func (g clientGateway) Subscribe(ctx context.Context, table string, filter rowfilter.Filter, onEvent gateway.Handler) (Subscription, error) {
	sub, err := g.Client.Subscribe(ctx, table, filter, onEvent)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
