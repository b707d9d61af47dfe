package ephemeral

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestChatLogFile(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	in := ChatLog{
		RoomID:  "r1",
		SelfID:  "s1",
		SavedAt: at,
		Messages: []Signal{
			{ID: uuid.New(), Kind: KindChat, FromID: "s1", FromName: "Alice", Payload: "hi", CreatedAt: at},
			{ID: uuid.New(), Kind: KindChat, FromID: "s2", FromName: "Bob", ToID: "s1", ToName: "Alice", Payload: "psst", Private: true, CreatedAt: at.Add(time.Second)},
		},
	}

	path := filepath.Join(t.TempDir(), "chat.msgpack")
	require.NoError(t, WriteChatLog(path, in))

	out, err := ReadChatLog(path)
	require.NoError(t, err)

	assert.Equal(t, chatLogVersion, out.Version)
	assert.Equal(t, "r1", out.RoomID)
	assert.True(t, at.Equal(out.SavedAt))
	require.Len(t, out.Messages, 2)
	assert.Equal(t, in.Messages[1].ID, out.Messages[1].ID)
	assert.Equal(t, "psst", out.Messages[1].Payload)
	assert.True(t, out.Messages[1].Private)
	assert.True(t, in.Messages[1].CreatedAt.Equal(out.Messages[1].CreatedAt))
}

func TestChatLogRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, msgpack.NewEncoder(&buf).Encode(&ChatLog{Version: 99}))

	_, err := DecodeChatLog(&buf)
	assert.ErrorContains(t, err, "unsupported version 99")
}

func TestReadChatLogMissing(t *testing.T) {
	_, err := ReadChatLog(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
