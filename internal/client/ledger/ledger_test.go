package ledger

import (
	"Keepsake/internal/pkg/clock"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Text string
}

var epoch = time.Date(2026, 10, 19, 20, 0, 0, 0, time.UTC)

func newLedger(c clock.Clock) *Ledger[note] {
	return New[note](
		WithClock[note](c),
		WithValidator(NotBlank(func(n note) string { return n.Text })),
	)
}

func durable(id string, at time.Time, text string) Entity[note] {
	return Entity[note]{ID: id, OwnerID: "u1", Payload: note{Text: text}, CreatedAt: at}
}

func ids(items []Entity[note]) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.ID
	}
	return out
}

func TestInsertOptimisticAppendsPending(t *testing.T) {
	c := clock.Fake(epoch)
	l := newLedger(c)

	tempID, err := l.InsertOptimistic("u1", note{Text: "hi"})
	require.NoError(t, err)
	assert.True(t, IsTemp(tempID))

	e, ok := l.Get(tempID)
	require.True(t, ok)
	assert.True(t, e.Pending)
	assert.Equal(t, epoch, e.CreatedAt)
	assert.Equal(t, "u1", e.OwnerID)
}

func TestInsertOptimisticRejectsBlank(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	notified := 0
	l.OnChange(func([]Entity[note]) { notified++ })

	_, err := l.InsertOptimistic("u1", note{Text: "   "})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, notified)
}

func TestNoDuplicationUnderRedelivery(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	a := ChangeEvent[note]{Kind: Inserted, Entity: durable("1", epoch, "a")}
	b := ChangeEvent[note]{Kind: Inserted, Entity: durable("2", epoch.Add(time.Second), "b")}
	bEdit := ChangeEvent[note]{Kind: Updated, Entity: durable("2", epoch.Add(time.Second), "b!")}

	for _, evt := range []ChangeEvent[note]{a, b, a, bEdit, a, b, bEdit, bEdit} {
		l.MergeRemote(evt)
	}

	items := l.Snapshot()
	assert.Equal(t, []string{"1", "2"}, ids(items))
	assert.Equal(t, "b!", items[1].Payload.Text)
}

func TestDuplicateEventDoesNotNotify(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	notified := 0
	l.OnChange(func([]Entity[note]) { notified++ })

	evt := ChangeEvent[note]{Kind: Inserted, Entity: durable("1", epoch, "a")}
	assert.True(t, l.MergeRemote(evt))
	assert.False(t, l.MergeRemote(evt))
	assert.Equal(t, 1, notified)
	assert.Equal(t, uint64(1), l.Absorbed())

	del := ChangeEvent[note]{Kind: Deleted, Entity: Entity[note]{ID: "1"}}
	assert.True(t, l.MergeRemote(del))
	assert.False(t, l.MergeRemote(del))
	assert.Equal(t, 2, notified)
	assert.Equal(t, 0, l.Len())
}

func TestOptimisticThenConfirmConverges(t *testing.T) {
	c := clock.Fake(epoch)
	confirmed := durable("42", epoch.Add(50*time.Millisecond), "hi")

	viaReconcile := newLedger(c)
	tempID, err := viaReconcile.InsertOptimistic("u1", note{Text: "hi"})
	require.NoError(t, err)
	assert.True(t, viaReconcile.Reconcile(tempID, confirmed))

	viaEvent := newLedger(c)
	viaEvent.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: confirmed})

	assert.Equal(t, viaEvent.Snapshot(), viaReconcile.Snapshot())
}

func TestEchoBeforeWriteResponse(t *testing.T) {
	c := clock.Fake(epoch)
	l := newLedger(c)
	tempID, err := l.InsertOptimistic("u1", note{Text: "hi"})
	require.NoError(t, err)

	echo := durable("42", epoch.Add(time.Second), "hi")
	echo.LocalID = tempID
	assert.True(t, l.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: echo}))

	// 写请求随后返回，临时记录已被替换
	assert.False(t, l.Reconcile(tempID, echo))
	assert.False(t, l.Rollback(tempID))

	items := l.Snapshot()
	require.Len(t, items, 1)
	assert.Equal(t, "42", items[0].ID)
	assert.False(t, items[0].Pending)
}

func TestReconcileAfterEventWithoutLocalID(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	tempID, err := l.InsertOptimistic("u1", note{Text: "hi"})
	require.NoError(t, err)

	l.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: durable("42", epoch, "hi")})
	assert.Equal(t, 2, l.Len())

	assert.True(t, l.Reconcile(tempID, durable("42", epoch, "hi")))
	assert.Equal(t, []string{"42"}, ids(l.Snapshot()))
}

func TestRollbackSafety(t *testing.T) {
	l := newLedger(clock.Fake(epoch))

	tempID, err := l.InsertOptimistic("u1", note{Text: "hi"})
	require.NoError(t, err)
	assert.True(t, l.Rollback(tempID))
	assert.NotPanics(t, func() {
		assert.False(t, l.Rollback(tempID))
		assert.False(t, l.Reconcile(tempID, durable("1", epoch, "hi")))
	})
	assert.Equal(t, 0, l.Len())

	tempID, err = l.InsertOptimistic("u1", note{Text: "again"})
	require.NoError(t, err)
	require.True(t, l.Reconcile(tempID, durable("2", epoch, "again")))
	assert.False(t, l.Rollback(tempID))
	assert.Equal(t, []string{"2"}, ids(l.Snapshot()))
	assert.False(t, l.Rollback("2"))
}

func TestScenarioSendFailsWithoutConnectivity(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	var renders [][]Entity[note]
	l.OnChange(func(items []Entity[note]) { renders = append(renders, items) })

	tempID, err := l.InsertOptimistic("u1", note{Text: "hi"})
	require.NoError(t, err)
	require.Len(t, renders, 1)
	require.Len(t, renders[0], 1)
	assert.Equal(t, "hi", renders[0][0].Payload.Text)
	assert.True(t, renders[0][0].Pending)

	// 写入失败
	l.Rollback(tempID)
	require.Len(t, renders, 2)
	assert.Empty(t, renders[1])
	assert.Empty(t, l.Snapshot())
	_, ok := l.Get(tempID)
	assert.False(t, ok)
}

func TestReconcileResortsByDurableCreatedAt(t *testing.T) {
	c := clock.Fake(epoch)
	l := newLedger(c)
	l.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: durable("1", epoch.Add(time.Second), "a")})

	tempID, err := l.InsertOptimistic("u1", note{Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{tempID, "1"}, ids(l.Snapshot()))

	l.Reconcile(tempID, durable("2", epoch.Add(2*time.Second), "b"))
	assert.Equal(t, []string{"1", "2"}, ids(l.Snapshot()))
}

func TestMergeIgnoresEventsWithoutDurableID(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	assert.False(t, l.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: Entity[note]{}}))
	assert.False(t, l.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: Entity[note]{ID: "tmp-x"}}))
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, uint64(2), l.Absorbed())
}

func TestResetKeepsPendingEntries(t *testing.T) {
	l := newLedger(clock.Fake(epoch.Add(time.Hour)))
	tempID, err := l.InsertOptimistic("u1", note{Text: "draft"})
	require.NoError(t, err)

	l.Reset([]Entity[note]{durable("2", epoch.Add(time.Minute), "b"), durable("1", epoch, "a"), durable("1", epoch, "a")})
	assert.Equal(t, []string{"1", "2", tempID}, ids(l.Snapshot()))
}

func TestConcurrentMergeAndReconcile(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	const n = 50

	temps := make([]string, n)
	for i := range temps {
		id, err := l.InsertOptimistic("u1", note{Text: fmt.Sprint(i)})
		require.NoError(t, err)
		temps[i] = id
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			l.Reconcile(temps[i], durable(fmt.Sprintf("own-%02d", i), epoch, fmt.Sprint(i)))
		}(i)
		go func(i int) {
			defer wg.Done()
			evt := ChangeEvent[note]{Kind: Inserted, Entity: durable(fmt.Sprintf("peer-%02d", i), epoch, "p")}
			l.MergeRemote(evt)
			l.MergeRemote(evt)
		}(i)
	}
	wg.Wait()

	items := l.Snapshot()
	assert.Len(t, items, 2*n)
	seen := map[string]bool{}
	for _, e := range items {
		assert.False(t, e.Pending)
		assert.False(t, seen[e.ID], "duplicate %s", e.ID)
		seen[e.ID] = true
	}
}

func TestObserverMayMutateLedger(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	var lens []int
	l.OnChange(func(items []Entity[note]) {
		lens = append(lens, len(items))
		for _, e := range items {
			if e.Pending && e.Payload.Text == "undo" {
				l.Rollback(e.ID)
			}
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := l.InsertOptimistic("u1", note{Text: "undo"})
		assert.NoError(t, err)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer re-entering the ledger deadlocked")
	}
	assert.Equal(t, []int{1, 0}, lens)
	assert.Zero(t, l.Len())
}

func TestOnChangeCancel(t *testing.T) {
	l := newLedger(clock.Fake(epoch))
	first, second := 0, 0
	cancel := l.OnChange(func([]Entity[note]) { first++ })
	l.OnChange(func([]Entity[note]) { second++ })

	l.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: durable("1", epoch, "a")})
	cancel()
	cancel()
	l.MergeRemote(ChangeEvent[note]{Kind: Inserted, Entity: durable("2", epoch, "b")})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
