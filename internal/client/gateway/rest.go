package gateway

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
)

// Row 未经解码的服务端行，由调用方在边界处解析为强类型
type Row = json.RawMessage

// DayAlbum 按天相册
type DayAlbum struct {
	Day      string `json:"day"`
	Count    int64  `json:"count"`
	CoverID  uint64 `json:"cover_id"`
	CoverURL string `json:"cover_url"`
}

// Query 查询附加参数
type Query struct {
	Order rowfilter.Order
	Limit int
}

func tablePath(table string) string {
	return "/rest/" + url.PathEscape(table)
}

func (c *Client) Select(ctx context.Context, table string, filter rowfilter.Filter, q Query) ([]Row, error) {
	values := filter.Values()
	if q.Order.Column != "" {
		values.Set("order", q.Order.String())
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	var rows []Row
	if err := c.call(ctx, http.MethodGet, tablePath(table), values, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Insert 返回服务端写入后的完整行
func (c *Client) Insert(ctx context.Context, table string, record any) (Row, error) {
	var row Row
	if err := c.call(ctx, http.MethodPost, tablePath(table), nil, record, &row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *Client) Update(ctx context.Context, table string, filter rowfilter.Filter, patch any) error {
	_, err := c.mutate(ctx, http.MethodPatch, table, filter, patch)
	return err
}

func (c *Client) Delete(ctx context.Context, table string, filter rowfilter.Filter) error {
	_, err := c.mutate(ctx, http.MethodDelete, table, filter, nil)
	return err
}

func (c *Client) mutate(ctx context.Context, method, table string, filter rowfilter.Filter, body any) (int64, error) {
	var res dto.AffectedDTO
	if err := c.call(ctx, method, tablePath(table), filter.Values(), body, &res); err != nil {
		return 0, err
	}
	return res.Affected, nil
}

// DayAlbums vault 为 true 时需要先解锁
func (c *Client) DayAlbums(ctx context.Context, vault bool) ([]DayAlbum, error) {
	values := url.Values{}
	if vault {
		values.Set("vault", "true")
	}
	var days []DayAlbum
	if err := c.call(ctx, http.MethodGet, "/images/days", values, nil, &days); err != nil {
		return nil, err
	}
	return days, nil
}
