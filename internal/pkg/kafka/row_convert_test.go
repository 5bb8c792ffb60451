package kafka

import (
	"Keepsake/internal/pkg/realtime"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageData(vault, day string) map[string]interface{} {
	return map[string]interface{}{
		"id":         "7",
		"couple_id":  "3",
		"owner_id":   "1",
		"object_key": "couple/3/2026/10/19/a.jpg",
		"width":      "640",
		"vault":      vault,
		"day":        day,
		"thumb_url":  nil,
		"created_at": "2026-10-19 08:30:00.125",
	}
}

func TestInsertRowIsTyped(t *testing.T) {
	msg := &CanalMessage{Table: "images", Type: canalInsert, ES: 1000, Data: []map[string]interface{}{imageData("0", "2026-10-19")}}

	events, err := ToChangeEvents(msg, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)

	evt := events[0]
	assert.Equal(t, realtime.Insert, evt.EventType)
	assert.Equal(t, uint64(3), evt.CoupleID)
	assert.False(t, evt.Vault)
	assert.Equal(t, int64(1000), evt.CommitTS)
	assert.Equal(t, uint64(7), evt.New["id"])
	assert.Equal(t, int64(640), evt.New["width"])
	assert.Equal(t, false, evt.New["vault"])
	assert.Nil(t, evt.New["thumb_url"])
	assert.Equal(t, "2026-10-19T08:30:00.125Z", evt.New["created_at"])
}

func TestUpdateMergesOldColumns(t *testing.T) {
	msg := &CanalMessage{
		Table: "images",
		Type:  canalUpdate,
		Data:  []map[string]interface{}{imageData("0", "2026-10-19")},
		Old:   []map[string]interface{}{{"caption": "before"}},
	}
	msg.Data[0]["caption"] = "after"

	events, err := ToChangeEvents(msg, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.Update, events[0].EventType)
	assert.Equal(t, "after", events[0].New["caption"])
	assert.Equal(t, "before", events[0].Old["caption"])
	assert.Equal(t, uint64(7), events[0].Old["id"])
}

func TestVaultMoveSplitsIntoDeleteAndInsert(t *testing.T) {
	msg := &CanalMessage{
		Table: "images",
		Type:  canalUpdate,
		Data:  []map[string]interface{}{imageData("1", "2026-10-19")},
		Old:   []map[string]interface{}{{"vault": "0"}},
	}

	events, err := ToChangeEvents(msg, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, realtime.Delete, events[0].EventType)
	assert.False(t, events[0].Vault)
	assert.Equal(t, false, events[0].Old["vault"])

	assert.Equal(t, realtime.Insert, events[1].EventType)
	assert.True(t, events[1].Vault)
}

func TestReactionRowsGetCompositeID(t *testing.T) {
	msg := &CanalMessage{
		Table: "reactions",
		Type:  canalDelete,
		Data: []map[string]interface{}{{
			"image_id": "7", "user_id": "2", "couple_id": "3", "emoji": "❤", "vault": "0",
		}},
	}
	events, err := ToChangeEvents(msg, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, realtime.Delete, events[0].EventType)
	assert.Equal(t, "7:2", events[0].Old["id"])
}

func TestSkippedMessages(t *testing.T) {
	_, err := ToChangeEvents(&CanalMessage{Table: "users", Type: canalInsert, Data: []map[string]interface{}{{"id": "1"}}}, time.UTC)
	assert.ErrorIs(t, err, errSkipRow)

	_, err = ToChangeEvents(&CanalMessage{Table: "images", IsDDL: true}, time.UTC)
	assert.ErrorIs(t, err, errSkipRow)

	_, err = ToChangeEvents(&CanalMessage{Table: "images", Type: canalInsert, Data: []map[string]interface{}{{"id": "x"}}}, time.UTC)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, errSkipRow)
}

func TestHiddenColumnsAreDropped(t *testing.T) {
	row, err := typedRow("images", map[string]interface{}{"id": "1", "vault_password": "secret"}, time.UTC)
	require.NoError(t, err)
	assert.NotContains(t, row, "vault_password")
}

func TestToCanalMessage(t *testing.T) {
	msg := &sarama.ConsumerMessage{Value: []byte(`{"table":"images","type":"INSERT","isDdl":false,"data":[{"id":"1"}]}`)}
	canal, err := ToCanalMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "images", canal.Table)

	_, err = ToCanalMessage(&sarama.ConsumerMessage{Value: []byte(`{"table":"images","data":[]}`)})
	assert.Error(t, err)
}

func TestToCanalMessageSkipsDDL(t *testing.T) {
	_, err := ToCanalMessage(&sarama.ConsumerMessage{Value: []byte(`{"table":"images","isDdl":true,"sql":"ALTER TABLE images ADD x int"}`)})
	assert.ErrorIs(t, err, errDDL)
}

type recordingSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *recordingSession) Context() context.Context { return s.ctx }

func (s *recordingSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

func binlog(offsets ...int64) []*sarama.ConsumerMessage {
	out := make([]*sarama.ConsumerMessage, len(offsets))
	for i, o := range offsets {
		out[i] = &sarama.ConsumerMessage{Topic: "keepsake.images", Offset: o}
	}
	return out
}

func TestApplyInOrderRetriesBeforeMarking(t *testing.T) {
	session := &recordingSession{ctx: context.Background()}
	var calls []int64
	failures := 2
	ok := applyInOrder(session, binlog(0, 1, 2), func(_ context.Context, msg *sarama.ConsumerMessage) error {
		calls = append(calls, msg.Offset)
		if msg.Offset == 1 && failures > 0 {
			failures--
			return errors.New("redis unavailable")
		}
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, []int64{0, 1, 1, 1, 2}, calls)
	assert.Equal(t, []int64{0, 1, 2}, session.marked)
}

func TestApplyInOrderStopsWithSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session := &recordingSession{ctx: ctx}
	ok := applyInOrder(session, binlog(0, 1, 2), func(_ context.Context, msg *sarama.ConsumerMessage) error {
		if msg.Offset == 1 {
			cancel()
			return errors.New("publish failed")
		}
		return nil
	})
	assert.False(t, ok)
	assert.Equal(t, []int64{0}, session.marked)
}
