package nats

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kirillkom/meeting-notes/internal/infrastructure/resilience"
)

// SpeakerMemory keeps diarization label bindings in a JetStream key-value
// bucket so every API instance attributes a meeting the same way.
// Keys are "<meetingID>.<hex(label)>".
type SpeakerMemory struct {
	kv       jetstream.KeyValue
	executor *resilience.Executor
}

func NewSpeakerMemory(ctx context.Context, conn *nats.Conn, bucket string, ttl time.Duration, executor *resilience.Executor) (*SpeakerMemory, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "diarization label to participant bindings",
		TTL:         ttl,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("speaker memory bucket %s: %w", bucket, err)
	}
	return &SpeakerMemory{kv: kv, executor: executor}, nil
}

func (m *SpeakerMemory) Recall(ctx context.Context, meetingID, label string) (string, bool, error) {
	var participantID string
	found := false
	err := m.execute(ctx, "nats.kv.get", func(ctx context.Context) error {
		entry, err := m.kv.Get(ctx, memoryKey(meetingID, label))
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		participantID = string(entry.Value())
		found = participantID != ""
		return nil
	})
	if err != nil {
		return "", false, wrapTemporaryIfNeeded(fmt.Errorf("recall speaker binding: %w", err))
	}
	return participantID, found, nil
}

func (m *SpeakerMemory) Remember(ctx context.Context, meetingID, label, participantID string) error {
	err := m.execute(ctx, "nats.kv.put", func(ctx context.Context) error {
		_, err := m.kv.Put(ctx, memoryKey(meetingID, label), []byte(participantID))
		return err
	})
	if err != nil {
		return wrapTemporaryIfNeeded(fmt.Errorf("remember speaker binding: %w", err))
	}
	return nil
}

func (m *SpeakerMemory) Forget(ctx context.Context, meetingID string) error {
	lister, err := m.kv.ListKeysFiltered(ctx, memoryPrefix(meetingID)+">")
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil
		}
		return wrapTemporaryIfNeeded(fmt.Errorf("list speaker bindings: %w", err))
	}
	defer func() {
		_ = lister.Stop()
	}()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}
	for _, key := range keys {
		if err := m.kv.Purge(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return wrapTemporaryIfNeeded(fmt.Errorf("purge speaker binding: %w", err))
		}
	}
	return nil
}

func (m *SpeakerMemory) execute(ctx context.Context, op string, fn func(context.Context) error) error {
	if m.executor == nil {
		return fn(ctx)
	}
	return m.executor.Execute(ctx, op, fn, classifyNATSError)
}

func memoryPrefix(meetingID string) string {
	return strings.TrimSpace(meetingID) + "."
}

// memoryKey hex-encodes the label; KV keys only allow a restricted alphabet.
func memoryKey(meetingID, label string) string {
	return memoryPrefix(meetingID) + hex.EncodeToString([]byte(strings.TrimSpace(label)))
}
