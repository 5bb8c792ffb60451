package screen

import (
	"Keepsake/internal/api/dto"
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

var epoch = time.Date(2026, 10, 19, 21, 0, 0, 0, time.UTC)

var ownerColumns = map[string]string{
	tableMessages:  "sender_id",
	tableImages:    "owner_id",
	tableComments:  "user_id",
	tableReactions: "user_id",
}

type fakeSub struct {
	backend *fakeBackend
	table   string
	filter  rowfilter.Filter
	handler gateway.Handler
	calls   int
}

func (s *fakeSub) Unsubscribe() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.calls++
	return nil
}

// fakeBackend 内存中的表与广播，多个 fakeGateway 共享
type fakeBackend struct {
	mu        sync.Mutex
	rows      map[string][]map[string]any
	subs      []*fakeSub
	seq       int
	held      []func()
	hold      bool
	insertErr error
	uploadErr error
	onInsert  func()
	inserts   int
	password  string
}

func newBackend() *fakeBackend {
	return &fakeBackend{rows: make(map[string][]map[string]any), password: "rose"}
}

func toMap(v any) map[string]any {
	data, _ := json.Marshal(v)
	m := map[string]any{}
	_ = json.Unmarshal(data, &m)
	return m
}

// seed 直接写入一行，不广播
func (b *fakeBackend) seed(table string, row map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[table] = append(b.rows[table], row)
}

func (b *fakeBackend) broadcast(table string, typ realtime.EventType, newRow, oldRow map[string]any) {
	evt := gateway.Event{Table: table, EventType: typ}
	match := newRow
	if newRow != nil {
		evt.New, _ = json.Marshal(newRow)
	}
	if oldRow != nil {
		evt.Old, _ = json.Marshal(oldRow)
		if typ == realtime.Delete {
			match = oldRow
		}
	}
	b.mu.Lock()
	var targets []gateway.Handler
	for _, s := range b.subs {
		if s.calls == 0 && s.table == table && s.filter.Matches(match) {
			targets = append(targets, s.handler)
		}
	}
	deliver := func() {
		for _, h := range targets {
			h(evt)
		}
	}
	if b.hold {
		b.held = append(b.held, deliver)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	deliver()
}

// flush 投递积压的事件，repeat 次模拟重复投递
func (b *fakeBackend) flush(repeat int) {
	b.mu.Lock()
	held := b.held
	b.held = nil
	b.hold = false
	b.mu.Unlock()
	for i := 0; i < repeat; i++ {
		for _, d := range held {
			d()
		}
	}
}

func (b *fakeBackend) subscription(table string) *fakeSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.table == table {
			return s
		}
	}
	return nil
}

type fakeGateway struct {
	backend *fakeBackend
	user    *gateway.User
}

func (b *fakeBackend) client(userID uint64) *fakeGateway {
	return &fakeGateway{backend: b, user: &gateway.User{ID: userID, Username: "user" + strconv.FormatUint(userID, 10), CoupleID: 1}}
}

func (g *fakeGateway) CurrentUser() (*gateway.User, bool) {
	if g.user == nil {
		return nil, false
	}
	return g.user, true
}

func (g *fakeGateway) Select(_ context.Context, table string, filter rowfilter.Filter, _ gateway.Query) ([]gateway.Row, error) {
	b := g.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []gateway.Row
	for _, row := range b.rows[table] {
		if filter.Matches(row) {
			data, _ := json.Marshal(row)
			out = append(out, data)
		}
	}
	return out, nil
}

func (g *fakeGateway) Insert(_ context.Context, table string, record any) (gateway.Row, error) {
	b := g.backend
	if b.onInsert != nil {
		b.onInsert()
	}
	b.mu.Lock()
	if b.insertErr != nil {
		b.mu.Unlock()
		return nil, b.insertErr
	}
	b.inserts++
	b.seq++
	row := toMap(record)
	row[ownerColumns[table]] = g.user.ID
	row["created_at"] = epoch.Add(time.Duration(b.seq) * time.Second).Format(time.RFC3339Nano)
	typ := realtime.Insert
	switch table {
	case tableReactions:
		id := fmt.Sprintf("%v:%d", rowfilter.Format(row["image_id"]), g.user.ID)
		row["id"] = id
		kept := b.rows[table][:0]
		for _, r := range b.rows[table] {
			if r["id"] == id {
				typ = realtime.Update
				continue
			}
			kept = append(kept, r)
		}
		b.rows[table] = kept
	case tableMessages:
		row["id"] = fmt.Sprintf("%024x", b.seq)
		row["seq"] = b.seq
	case tableImages:
		row["id"] = b.seq
		row["url"] = "http://cdn/" + rowfilter.Format(row["object_key"])
	default:
		row["id"] = b.seq
	}
	row = toMap(row)
	b.rows[table] = append(b.rows[table], row)
	b.mu.Unlock()

	b.broadcast(table, typ, row, nil)
	data, _ := json.Marshal(row)
	return data, nil
}

func (g *fakeGateway) Update(_ context.Context, table string, filter rowfilter.Filter, patch any) error {
	b := g.backend
	fields := toMap(patch)
	b.mu.Lock()
	type change struct{ before, after map[string]any }
	var changes []change
	for i, row := range b.rows[table] {
		if !filter.Matches(row) {
			continue
		}
		after := toMap(row)
		for k, v := range fields {
			if v != nil {
				after[k] = v
			}
		}
		b.rows[table][i] = after
		changes = append(changes, change{row, after})
	}
	b.mu.Unlock()
	for _, c := range changes {
		b.broadcast(table, realtime.Delete, nil, c.before)
		b.broadcast(table, realtime.Insert, c.after, nil)
	}
	return nil
}

func (g *fakeGateway) Delete(_ context.Context, table string, filter rowfilter.Filter) error {
	b := g.backend
	b.mu.Lock()
	var removed []map[string]any
	kept := b.rows[table][:0]
	for _, row := range b.rows[table] {
		owner := rowfilter.Format(row[ownerColumns[table]])
		if filter.Matches(row) && owner == strconv.FormatUint(g.user.ID, 10) {
			removed = append(removed, row)
			continue
		}
		kept = append(kept, row)
	}
	b.rows[table] = kept
	b.mu.Unlock()
	if len(removed) == 0 {
		return &gateway.APIError{Code: 404, Message: "not found"}
	}
	for _, row := range removed {
		b.broadcast(table, realtime.Delete, nil, row)
	}
	return nil
}

func (g *fakeGateway) Subscribe(_ context.Context, table string, filter rowfilter.Filter, onEvent gateway.Handler) (Subscription, error) {
	if g.user == nil {
		return nil, gateway.ErrAuth
	}
	sub := &fakeSub{backend: g.backend, table: table, filter: filter, handler: onEvent}
	g.backend.mu.Lock()
	g.backend.subs = append(g.backend.subs, sub)
	g.backend.mu.Unlock()
	return sub, nil
}

func (g *fakeGateway) UploadMedia(_ context.Context, filename, _ string, r io.Reader, size int64) *gateway.UploadTask {
	progress := make(chan gateway.Progress, 4)
	done := make(chan gateway.UploadResult, 1)
	go func() {
		defer close(progress)
		n, err := io.Copy(io.Discard, r)
		if err == nil {
			err = g.backend.uploadErr
		}
		if err != nil {
			done <- gateway.UploadResult{Err: err}
			return
		}
		progress <- gateway.Progress{Sent: n, Total: size}
		done <- gateway.UploadResult{ObjectKey: "media/1/" + filename, PublicURL: "http://cdn/media/1/" + filename}
	}()
	return &gateway.UploadTask{Progress: progress, Done: done}
}

func (g *fakeGateway) UnlockVault(_ context.Context, password string) (*dto.VaultSessionDTO, error) {
	if password != g.backend.password {
		return nil, &gateway.APIError{Code: 403, Message: "wrong vault password"}
	}
	return &dto.VaultSessionDTO{VaultToken: "v"}, nil
}

var errOffline = errors.New("dial tcp: network is unreachable")
