package ephemeral

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BioHazard786/roomcall/internal/callerr"
	"github.com/vmihailenco/msgpack/v5"
)

const chatLogVersion = 1

// ChatLog is the on-disk form of a session's chat.
type ChatLog struct {
	Version  int       `msgpack:"version"`
	RoomID   string    `msgpack:"room_id"`
	SelfID   string    `msgpack:"self_id"`
	SavedAt  time.Time `msgpack:"saved_at"`
	Messages []Signal  `msgpack:"messages"`
}

// EncodeChatLog writes log as msgpack.
func EncodeChatLog(w io.Writer, log ChatLog) error {
	log.Version = chatLogVersion
	if err := msgpack.NewEncoder(w).Encode(&log); err != nil {
		return callerr.NewError("encode chat log", err)
	}
	return nil
}

// DecodeChatLog reads a log written by EncodeChatLog.
func DecodeChatLog(r io.Reader) (ChatLog, error) {
	var log ChatLog
	if err := msgpack.NewDecoder(r).Decode(&log); err != nil {
		return ChatLog{}, callerr.NewError("decode chat log", err)
	}
	if log.Version != chatLogVersion {
		return ChatLog{}, callerr.WrapError("decode chat log", fmt.Errorf("unsupported version %d", log.Version), "")
	}
	return log, nil
}

// WriteChatLog saves log to path, replacing any existing file.
func WriteChatLog(path string, log ChatLog) error {
	f, err := os.Create(path)
	if err != nil {
		return callerr.NewError("create chat log", err)
	}

	w := bufio.NewWriter(f)
	if err := EncodeChatLog(w, log); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return callerr.NewError("write chat log", err)
	}
	return f.Close()
}

// ReadChatLog loads a chat log saved by WriteChatLog.
func ReadChatLog(path string) (ChatLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return ChatLog{}, callerr.NewError("open chat log", err)
	}
	defer f.Close()

	return DecodeChatLog(bufio.NewReader(f))
}
