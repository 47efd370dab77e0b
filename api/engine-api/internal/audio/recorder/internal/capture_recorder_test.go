// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_recorder

import (
	"bytes"
	"context"
	"testing"
	"time"

	internal_audio "github.com/affirmai/engine/api/engine-api/internal/audio"
	"github.com/affirmai/engine/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-recorder"),
		commons.Path(t.TempDir()),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func newTestRecorder(t *testing.T) *captureRecorder {
	t.Helper()
	return NewCaptureRecorder(newTestLogger(t), internal_audio.ENGINE_AUDIO_CONFIG).(*captureRecorder)
}

func pcm(val byte, length int) []byte {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = val
	}
	return buf
}

func TestRecordBeforeStartFails(t *testing.T) {
	rec := newTestRecorder(t)
	if err := rec.Record(context.Background(), pcm(0x01, 320)); err == nil {
		t.Fatal("expected error before Start")
	}
}

func TestRecordAppendsChunks(t *testing.T) {
	rec := newTestRecorder(t)
	rec.Start()
	data := pcm(0x01, 320)
	if err := rec.Record(context.Background(), data); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	if len(rec.chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(rec.chunks))
	}
	if !bytes.Equal(rec.chunks[0].Data, data) {
		t.Errorf("data mismatch")
	}
	if rec.cursor != 320 {
		t.Errorf("expected cursor 320, got %d", rec.cursor)
	}
}

func TestRecordEmptyDataIsIgnored(t *testing.T) {
	rec := newTestRecorder(t)
	rec.Start()
	ctx := context.Background()
	rec.Record(ctx, nil)
	rec.Record(ctx, []byte{})

	if len(rec.chunks) != 0 {
		t.Fatalf("expected 0 chunks, got %d", len(rec.chunks))
	}
}

func TestRecordKeepsFrameAlignment(t *testing.T) {
	rec := newTestRecorder(t)
	rec.Start()
	ctx := context.Background()
	rec.Record(ctx, pcm(0x01, 3))
	rec.Record(ctx, pcm(0x02, 1))

	if rec.cursor != 4 {
		t.Fatalf("expected cursor 4, got %d", rec.cursor)
	}
	if len(rec.pending) != 0 {
		t.Errorf("expected no pending bytes, got %d", len(rec.pending))
	}
}

func TestRecordCopiesData(t *testing.T) {
	rec := newTestRecorder(t)
	rec.Start()
	data := pcm(0xFF, 100)
	rec.Record(context.Background(), data)
	data[0] = 0x00
	if rec.chunks[0].Data[0] != 0xFF {
		t.Error("Record must copy data")
	}
}

func TestDurationFollowsBytes(t *testing.T) {
	rec := newTestRecorder(t)
	rec.Start()
	rec.Record(context.Background(), pcm(0x01, internal_audio.ENGINE_AUDIO_CONFIG.BytesPerSecond()/2))
	if got := rec.Duration(); got != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", got)
	}
}

func TestPersistEmptyReturnsError(t *testing.T) {
	rec := newTestRecorder(t)
	rec.Start()
	if _, err := rec.Persist(); err == nil {
		t.Fatal("expected error for empty recorder")
	}
}

func TestContinueAppendsAfterGap(t *testing.T) {
	rec := newTestRecorder(t)
	now := time.Unix(0, 0)
	rec.clock = func() time.Time { return now }
	ctx := context.Background()

	rec.Start()
	rec.Record(ctx, pcm(0x11, 100))

	// a long gap on the wall clock must not be rendered as silence
	now = now.Add(30 * time.Second)
	rec.Start()
	rec.Record(ctx, pcm(0x22, 200))

	out, err := rec.Persist()
	if err != nil {
		t.Fatalf("Persist error: %v", err)
	}
	if len(out) != 300 {
		t.Fatalf("expected 300 bytes, got %d", len(out))
	}
	for i := 0; i < 100; i++ {
		if out[i] != 0x11 {
			t.Errorf("byte %d: expected 0x11, got 0x%02x", i, out[i])
			break
		}
	}
	for i := 100; i < 300; i++ {
		if out[i] != 0x22 {
			t.Errorf("byte %d: expected 0x22, got 0x%02x", i, out[i])
			break
		}
	}
	if len(rec.segments) != 2 || rec.segments[1].Offset != 100 {
		t.Errorf("expected second segment at offset 100, got %+v", rec.segments)
	}
}
