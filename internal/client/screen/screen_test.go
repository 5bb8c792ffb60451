package screen

import (
	"Keepsake/internal/client/gateway"
	"Keepsake/internal/client/ledger"
	"Keepsake/internal/client/viewer"
	"Keepsake/internal/pkg/clock"
	"Keepsake/internal/pkg/realtime"
	"Keepsake/internal/pkg/rowfilter"
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openChat(t *testing.T, gw Gateway) *Chat {
	chat := NewChat(gw, 0, WithClock(clock.Fake(epoch)))
	require.NoError(t, chat.Open(context.Background()))
	t.Cleanup(func() { _ = chat.Close() })
	return chat
}

func contents(items []ledger.Entity[Message]) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.Payload.Content
	}
	return out
}

func TestSendOfflineLeavesNoTrace(t *testing.T) {
	backend := newBackend()
	chat := openChat(t, backend.client(1))

	var during []ledger.Entity[Message]
	backend.onInsert = func() { during = chat.Items() }
	backend.insertErr = errOffline

	var notified int
	chat.OnChange(func([]ledger.Entity[Message]) { notified++ })

	_, err := chat.Send(context.Background(), "hi")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Retryable)
	assert.ErrorIs(t, err, errOffline)

	require.Len(t, during, 1)
	assert.True(t, during[0].Pending)
	assert.True(t, ledger.IsTemp(during[0].ID))
	assert.Equal(t, "hi", during[0].Payload.Content)

	assert.Zero(t, chat.Len())
	assert.Equal(t, 2, notified)
}

func TestSendWithoutUserIsRejectedBeforeInsert(t *testing.T) {
	backend := newBackend()
	gw := backend.client(1)
	chat := openChat(t, gw)
	gw.user = nil

	var notified int
	chat.OnChange(func([]ledger.Entity[Message]) { notified++ })

	_, err := chat.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrAuth)
	assert.Zero(t, notified)
	assert.Zero(t, backend.inserts)
}

func TestSendBlankIsValidationError(t *testing.T) {
	backend := newBackend()
	chat := openChat(t, backend.client(1))

	_, err := chat.Send(context.Background(), "   \n")
	var ve *ledger.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, backend.inserts)
	assert.Zero(t, chat.Len())
}

func TestSendTrimsAndConfirms(t *testing.T) {
	backend := newBackend()
	chat := openChat(t, backend.client(1))

	msg, err := chat.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Payload.Content)
	assert.Equal(t, "1", msg.OwnerID)
	assert.False(t, ledger.IsTemp(msg.ID))

	items := chat.Items()
	require.Len(t, items, 1)
	assert.Equal(t, msg.ID, items[0].ID)
	assert.False(t, items[0].Pending)
}

func TestEchoBeforeReplyDoesNotDuplicate(t *testing.T) {
	backend := newBackend()
	chat := openChat(t, backend.client(1))

	_, err := chat.Send(context.Background(), "first")
	require.NoError(t, err)
	_, err = chat.Send(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, contents(chat.Items()))
	for _, e := range chat.Items() {
		assert.False(t, e.Pending)
	}
}

func TestConcurrentWritersConverge(t *testing.T) {
	backend := newBackend()
	alice := openChat(t, backend.client(1))
	bob := openChat(t, backend.client(2))

	backend.hold = true
	_, err := alice.Send(context.Background(), "from alice")
	require.NoError(t, err)
	_, err = bob.Send(context.Background(), "from bob")
	require.NoError(t, err)

	// 每条事件投递两次
	backend.flush(2)

	a, b := alice.Items(), bob.Items()
	require.Len(t, a, 2)
	require.Len(t, b, 2)
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.False(t, a[i].Pending)
		assert.False(t, b[i].Pending)
	}
	assert.Equal(t, []string{"from alice", "from bob"}, contents(a))
	assert.Positive(t, alice.Absorbed())
}

func TestRecallRemovesOnceAcrossEcho(t *testing.T) {
	backend := newBackend()
	chat := openChat(t, backend.client(1))
	msg, err := chat.Send(context.Background(), "oops")
	require.NoError(t, err)

	require.NoError(t, chat.Recall(context.Background(), msg.ID))
	assert.Zero(t, chat.Len())

	// 别人的消息不能撤回
	other := openChat(t, backend.client(2))
	msg, err = chat.Send(context.Background(), "mine")
	require.NoError(t, err)
	err = other.Recall(context.Background(), msg.ID)
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Retryable)
	assert.Equal(t, 1, other.Len())
}

func TestMalformedRowsAreDropped(t *testing.T) {
	backend := newBackend()
	backend.seed(tableMessages, map[string]any{"content": "no id", "created_at": epoch.Format(time.RFC3339)})
	backend.seed(tableMessages, map[string]any{"id": "a1", "content": "ok", "sender_id": 2, "created_at": epoch.Format(time.RFC3339)})
	chat := openChat(t, backend.client(1))

	assert.Equal(t, []string{"ok"}, contents(chat.Items()))
	assert.Equal(t, uint64(1), chat.Malformed())

	sub := backend.subscription(tableMessages)
	require.NotNil(t, sub)
	sub.handler(gateway.Event{Table: tableMessages, EventType: realtime.Insert, New: json.RawMessage(`{"id":`)})
	sub.handler(gateway.Event{Table: tableMessages, EventType: "TRUNCATE", New: json.RawMessage(`{}`)})
	assert.Equal(t, uint64(3), chat.Malformed())
	assert.Equal(t, 1, chat.Len())
}

func TestCloseUnsubscribesOnce(t *testing.T) {
	backend := newBackend()
	chat := NewChat(backend.client(1), 0)
	require.NoError(t, chat.Open(context.Background()))

	require.NoError(t, chat.Close())
	require.NoError(t, chat.Close())
	assert.Equal(t, 1, backend.subscription(tableMessages).calls)
}

func TestDayGalleryUpload(t *testing.T) {
	backend := newBackend()
	day := NewDayGallery(backend.client(1), "2026-10-19", WithClock(clock.Fake(epoch)))
	require.NoError(t, day.Open(context.Background()))
	defer day.Close()

	var sent int64
	photo, err := day.Upload(context.Background(), UploadFile{
		Name:        "beach.jpg",
		ContentType: "image/jpeg",
		Body:        strings.NewReader("jpeg-bytes"),
		Size:        10,
		Caption:     "sunset",
		OnProgress:  func(p gateway.Progress) { sent = p.Sent },
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sent)
	assert.Equal(t, "sunset", photo.Payload.Caption)
	assert.Equal(t, "2026-10-19", photo.Payload.Day)
	assert.Equal(t, "http://cdn/media/1/beach.jpg", photo.Payload.URL)
	assert.Equal(t, 1, day.Len())

	backend.uploadErr = &gateway.UploadError{Status: 403, Code: "AccessDenied"}
	_, err = day.Upload(context.Background(), UploadFile{Name: "b.jpg", ContentType: "image/jpeg", Body: strings.NewReader("x"), Size: 1})
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 1, day.Len())
}

func TestDayGalleryIgnoresOtherDaysAndVault(t *testing.T) {
	backend := newBackend()
	gw := backend.client(1)
	day := NewDayGallery(gw, "2026-10-19")
	require.NoError(t, day.Open(context.Background()))
	defer day.Close()

	other := NewDayGallery(gw, "2026-10-18")
	_, err := other.Upload(context.Background(), UploadFile{Name: "a.jpg", ContentType: "image/jpeg", Body: strings.NewReader("a"), Size: 1})
	require.NoError(t, err)
	assert.Zero(t, day.Len())

	photo, err := day.Upload(context.Background(), UploadFile{Name: "b.jpg", ContentType: "image/jpeg", Body: strings.NewReader("b"), Size: 1})
	require.NoError(t, err)
	require.NoError(t, day.SetVault(context.Background(), photo.ID, true))
	assert.Zero(t, day.Len())
}

func TestSlideshowFollowsFeedLength(t *testing.T) {
	backend := newBackend()
	gw := backend.client(1)
	for i := 1; i <= 3; i++ {
		backend.seed(tableImages, map[string]any{
			"id": i, "owner_id": 1, "url": "http://cdn/" + string(rune('a'+i)), "day": "2026-10-19", "vault": false,
			"created_at": epoch.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
		})
	}
	c := clock.Fake(epoch)
	day := NewDayGallery(gw, "2026-10-19", WithClock(c))
	require.NoError(t, day.Open(context.Background()))
	defer day.Close()

	v := day.Slideshow()
	defer v.Close()
	require.True(t, v.OnUserNavigate(2))

	require.NoError(t, day.Delete(context.Background(), "3"))
	assert.Equal(t, 1, v.Index())

	require.NoError(t, day.Delete(context.Background(), "1"))
	require.NoError(t, day.Delete(context.Background(), "2"))
	assert.Equal(t, 0, v.Index())
	assert.Equal(t, viewer.Idle, v.State())
	assert.False(t, v.Start(3*time.Second))
}

func TestVaultRequiresUnlock(t *testing.T) {
	backend := newBackend()
	backend.seed(tableImages, map[string]any{"id": 1, "owner_id": 1, "url": "http://cdn/a", "vault": false, "created_at": epoch.Format(time.RFC3339)})
	backend.seed(tableImages, map[string]any{"id": 2, "owner_id": 1, "url": "http://cdn/b", "vault": true, "created_at": epoch.Format(time.RFC3339)})
	vault := NewVault(backend.client(1))
	defer vault.Close()

	assert.ErrorIs(t, vault.Open(context.Background()), ErrVaultLocked)
	_, err := vault.Upload(context.Background(), UploadFile{Name: "a.jpg", Body: strings.NewReader("a")})
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.Nil(t, backend.subscription(tableImages))

	err = vault.Unlock(context.Background(), "tulip")
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)

	require.NoError(t, vault.Unlock(context.Background(), "rose"))
	items := vault.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ID)
	assert.True(t, items[0].Payload.Vault)
}

func TestCommentsAndReactions(t *testing.T) {
	backend := newBackend()
	gw := backend.client(1)
	comments := NewComments(gw, 5, WithClock(clock.Fake(epoch)))
	require.NoError(t, comments.Open(context.Background()))
	defer comments.Close()

	c, err := comments.Post(context.Background(), " lovely ")
	require.NoError(t, err)
	assert.Equal(t, "lovely", c.Payload.Content)
	assert.Equal(t, uint64(5), c.Payload.ImageID)

	r, err := comments.React(context.Background(), "❤️")
	require.NoError(t, err)
	assert.Equal(t, "5:1", r.ID)
	_, err = comments.React(context.Background(), "😂")
	require.NoError(t, err)

	reactions := comments.Reactions.Items()
	require.Len(t, reactions, 1)
	assert.Equal(t, "😂", reactions[0].Payload.Emoji)

	require.NoError(t, comments.Unreact(context.Background()))
	assert.Zero(t, comments.Reactions.Len())

	require.NoError(t, comments.Delete(context.Background(), c.ID))
	assert.Zero(t, comments.Len())
}

// slowSelect 在查询结果返回前执行 afterQuery，模拟响应仍在路上时对方的写入
type slowSelect struct {
	*fakeGateway
	afterQuery func()
}

func (g *slowSelect) Select(ctx context.Context, table string, filter rowfilter.Filter, q gateway.Query) ([]gateway.Row, error) {
	rows, err := g.fakeGateway.Select(ctx, table, filter, q)
	if g.afterQuery != nil {
		g.afterQuery()
	}
	return rows, err
}

func TestOpenKeepsChangesMadeDuringLoad(t *testing.T) {
	backend := newBackend()
	backend.seed(tableMessages, map[string]any{
		"id": "m-old", "sender_id": 2, "content": "old", "seq": 1, "created_at": epoch.Format(time.RFC3339),
	})
	bob := backend.client(2)
	alice := &slowSelect{fakeGateway: backend.client(1)}
	alice.afterQuery = func() {
		assert.NoError(t, bob.Delete(context.Background(), tableMessages, rowfilter.Filter{rowfilter.Eq("id", "m-old")}))
		_, err := openChat(t, bob).Send(context.Background(), "new")
		assert.NoError(t, err)
	}

	chat := NewChat(alice, 0, WithClock(clock.Fake(epoch)))
	require.NoError(t, chat.Open(context.Background()))
	defer chat.Close()

	assert.Equal(t, []string{"new"}, contents(chat.Items()))

	_, err := chat.Send(context.Background(), "after")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "after"}, contents(chat.Items()))
}

func TestConcurrentOpenSubscribesOnce(t *testing.T) {
	backend := newBackend()
	chat := NewChat(backend.client(1), 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, chat.Open(context.Background()))
		}()
	}
	wg.Wait()
	require.NoError(t, chat.Close())
	assert.ErrorIs(t, chat.Open(context.Background()), ErrNotOpen)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.subs, 1)
	assert.Equal(t, 1, backend.subs[0].calls)
}

func TestClosedSlideshowStopsFollowingFeed(t *testing.T) {
	backend := newBackend()
	gw := backend.client(1)
	for i := 1; i <= 3; i++ {
		backend.seed(tableImages, map[string]any{
			"id": i, "owner_id": 1, "url": "http://cdn/" + strconv.Itoa(i), "day": "2026-10-19", "vault": false,
			"created_at": epoch.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
		})
	}
	day := NewDayGallery(gw, "2026-10-19", WithClock(clock.Fake(epoch)))
	require.NoError(t, day.Open(context.Background()))
	defer day.Close()

	v := day.Slideshow()
	require.True(t, v.OnUserNavigate(2))
	v.Close()

	require.NoError(t, day.Delete(context.Background(), "3"))
	assert.Equal(t, 2, v.Index())

	live := day.Slideshow()
	defer live.Close()
	require.True(t, live.OnUserNavigate(1))
	require.NoError(t, day.Delete(context.Background(), "2"))
	assert.Equal(t, 0, live.Index())
}
