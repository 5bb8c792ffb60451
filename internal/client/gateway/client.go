// Package gateway 是 Keepsake 服务端的客户端 SDK：通用表读写、实时订阅、
// 媒体直传与登录态。所有调用以返回值报告错误，调用方必须逐一检查。
package gateway

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/consts"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const codeOK = 200

var (
	// ErrAuth 未登录或会话失效，调用方应提示重新登录
	ErrAuth = errors.New("gateway: not authenticated")
	// ErrAlreadyUnsubscribed 同一订阅只能取消一次
	ErrAlreadyUnsubscribed = errors.New("gateway: subscription already cancelled")
	ErrClosed              = errors.New("gateway: client closed")
)

// APIError 服务端返回的业务错误
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway: %d %s", e.Code, e.Message)
}

// User 当前登录用户
type User = dto.UserDTO

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type Option func(*Client)

// WithToken 恢复已保存的会话令牌
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTokenSink 令牌变化时回调，用于持久化到设置文件
func WithTokenSink(fn func(token string)) Option {
	return func(c *Client) { c.tokenSink = fn }
}

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// Client 单个登录会话，内部至多维持一条 websocket 连接
type Client struct {
	baseURL   string
	hc        *http.Client
	http      *resty.Client
	dialer    *websocket.Dialer
	tokenSink func(string)

	mu         sync.Mutex
	token      string
	user       *User
	vaultToken string

	rtMu sync.Mutex
	rt   *realtimeConn
}

// New baseURL 形如 http://host:8080
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 30 * time.Second}
	}
	c.http = resty.NewWithClient(c.hc).
		SetBaseURL(c.baseURL+"/api").
		SetHeader("Accept", "application/json")
	return c
}

func (c *Client) session() (token, vault string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.vaultToken
}

func (c *Client) setToken(token string, user *User) {
	c.mu.Lock()
	c.token = token
	if user != nil {
		c.user = user
	}
	sink := c.tokenSink
	c.mu.Unlock()
	if sink != nil {
		sink(token)
	}
}

// CurrentUser 返回当前用户，未登录时 ok 为 false
func (c *Client) CurrentUser() (*User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil || c.token == "" {
		return nil, false
	}
	u := *c.user
	return &u, true
}

// call 发送请求并解开 {code,message,data}，out 为 nil 时忽略 data
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	token, vault := c.session()
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	if vault != "" {
		req.SetHeader(consts.HeaderVault, vault)
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		req.SetHeader("Content-Type", "application/json").SetBody(data)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return ErrAuth
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.Errorf("%s %s: http %d", method, path, resp.StatusCode())
	}

	var env envelope
	if err = json.Unmarshal(resp.Body(), &env); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	if env.Code == http.StatusUnauthorized {
		return ErrAuth
	}
	if env.Code != codeOK {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err = json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "decode %s %s data", method, path)
	}
	return nil
}

// Close 断开实时连接，已有订阅不再收到事件
func (c *Client) Close() error {
	c.rtMu.Lock()
	rt := c.rt
	c.rt = nil
	c.rtMu.Unlock()
	if rt != nil {
		return rt.close()
	}
	return nil
}
