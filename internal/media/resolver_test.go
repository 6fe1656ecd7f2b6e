package media

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"testing"

	"tgfeed/internal/domain"
	"tgfeed/internal/upstream/upstreamtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		msg      domain.UpstreamMessage
		wantKind domain.MediaKind
		wantMIME string
	}{
		{"photo", domain.UpstreamMessage{Photo: true}, domain.KindPhoto, "image/jpeg"},
		{"video", domain.UpstreamMessage{Video: true}, domain.KindVideo, "video/mp4"},
		{"animation", domain.UpstreamMessage{Animation: true}, domain.KindAnimation, "image/gif"},
		{"voice", domain.UpstreamMessage{Voice: true}, domain.KindVoice, "audio/ogg"},
		{"audio", domain.UpstreamMessage{Audio: true}, domain.KindAudio, "audio/mpeg"},
		{"sticker", domain.UpstreamMessage{Sticker: true}, domain.KindSticker, "image/webp"},
		{"poll", domain.UpstreamMessage{Poll: &domain.PollInfo{Question: "q"}}, domain.KindPoll, "application/octet-stream"},
		{"bare text", domain.UpstreamMessage{Text: "hi"}, domain.KindText, "application/octet-stream"},
		{
			"explicit mime wins",
			domain.UpstreamMessage{Video: true, File: &domain.FileInfo{MimeType: "video/webm"}},
			domain.KindVideo, "video/webm",
		},
		{
			"document by extension",
			domain.UpstreamMessage{Document: true, File: &domain.FileInfo{Name: "report.PDF"}},
			domain.KindFile, "application/pdf",
		},
		{
			"document unknown extension",
			domain.UpstreamMessage{Document: true, File: &domain.FileInfo{Name: "blob.xyz"}},
			domain.KindFile, "application/octet-stream",
		},
		{
			"photo outranks document",
			domain.UpstreamMessage{Photo: true, Document: true},
			domain.KindPhoto, "image/jpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, mime := Classify(&tt.msg)
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if mime != tt.wantMIME {
				t.Errorf("mime = %q, want %q", mime, tt.wantMIME)
			}
		})
	}
}

func TestResolveInlineBelowLimit(t *testing.T) {
	f := upstreamtest.New()
	payload := []byte("tiny image bytes")
	f.Media[10] = payload

	msg := &domain.UpstreamMessage{
		ID: 10, Photo: true,
		File: &domain.FileInfo{Size: int64(len(payload))},
	}

	r := NewResolver(f, testLogger())
	desc := r.Resolve(context.Background(), msg, ResolveOptions{IncludeFull: true, InlineLimit: PushInlineLimit})
	if desc == nil {
		t.Fatal("expected descriptor")
	}
	if !desc.Inline() {
		t.Fatal("expected inline payload")
	}
	if got, _ := base64.StdEncoding.DecodeString(desc.Data); string(got) != string(payload) {
		t.Error("inline payload does not round-trip")
	}
	if desc.SizeBytes != int64(len(payload)) {
		t.Errorf("size = %d, want %d", desc.SizeBytes, len(payload))
	}
}

func TestResolveNeverInlinesAboveLimit(t *testing.T) {
	kinds := []domain.UpstreamMessage{
		{Photo: true}, {Video: true}, {Animation: true}, {Voice: true},
		{Audio: true}, {Sticker: true}, {Document: true},
	}

	for _, msg := range kinds {
		msg.ID = 5
		msg.File = &domain.FileInfo{Size: PushInlineLimit + 1}

		f := upstreamtest.New()
		f.Media[5] = []byte("bytes that must not be embedded")
		r := NewResolver(f, testLogger())

		desc := r.Resolve(context.Background(), &msg, ResolveOptions{IncludeFull: true, InlineLimit: PushInlineLimit})
		if desc == nil {
			t.Fatal("expected reference descriptor")
		}
		if desc.Inline() {
			kind, _ := Classify(&msg)
			t.Errorf("kind %s inlined above the active ceiling", kind)
		}
		if !desc.RequiresDownload || desc.DownloadURL != "/media/5" {
			t.Errorf("reference descriptor malformed: %+v", desc)
		}
	}
}

func TestResolveReferenceWhenFullNotRequested(t *testing.T) {
	f := upstreamtest.New()
	msg := &domain.UpstreamMessage{
		ID: 3, Video: true,
		File: &domain.FileInfo{Name: "clip.mp4", Size: 2048},
	}

	r := NewResolver(f, testLogger())
	desc := r.Resolve(context.Background(), msg, ResolveOptions{IncludeFull: false, InlineLimit: PullInlineLimit})
	if desc == nil || desc.Inline() {
		t.Fatalf("expected reference, got %+v", desc)
	}
	if desc.FileName != "media_3.mp4" {
		t.Errorf("file name = %q", desc.FileName)
	}
	if desc.SizeBytes != 2048 {
		t.Errorf("size = %d", desc.SizeBytes)
	}
}

func TestResolveMissingDataIsOmitted(t *testing.T) {
	f := upstreamtest.New() // no media registered: download fails
	msg := &domain.UpstreamMessage{ID: 8, Photo: true, File: &domain.FileInfo{Size: 100}}

	r := NewResolver(f, testLogger())
	desc := r.Resolve(context.Background(), msg, ResolveOptions{IncludeFull: true, InlineLimit: PushInlineLimit})
	if desc != nil {
		t.Errorf("missing attachment data must be omitted, got %+v", desc)
	}
}

func TestResolveNoMedia(t *testing.T) {
	r := NewResolver(upstreamtest.New(), testLogger())
	desc := r.Resolve(context.Background(), &domain.UpstreamMessage{ID: 1, Text: "plain"}, ResolveOptions{IncludeFull: true})
	if desc != nil {
		t.Errorf("text message must not produce a descriptor, got %+v", desc)
	}
}
