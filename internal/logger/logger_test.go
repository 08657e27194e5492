package logger

import (
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/obot-platform/shopinstall/internal/config"
)

func TestLogUpstream_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.LogUpstream("exchange", "foo.myshopify.com", 200, time.Millisecond, nil)
	l.LogUpstream("exchange", "foo.myshopify.com", 400, time.Millisecond, errors.New("bad request"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Errorf("first entry level = %v, want info", entries[0].Level)
	}
	if entries[1].Level != zapcore.WarnLevel {
		t.Errorf("second entry level = %v, want warn", entries[1].Level)
	}
	if got := entries[1].ContextMap()["status"]; got != int64(400) {
		t.Errorf("status field = %v, want 400", got)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("shop", "foo.myshopify.com")

	l.Info("initiate")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["shop"]; got != "foo.myshopify.com" {
		t.Errorf("shop field = %v", got)
	}
}

func TestLogRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromZap(zap.New(core))

	r := httptest.NewRequest("GET", "/auth?shop=foo.myshopify.com", nil)
	l.LogRequest(r, "req-1", "/auth?shop=foo.myshopify.com", 302, 0, time.Millisecond)

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("got %d request entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["method"] != "GET" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	l, err := New(config.LoggingConfig{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Debug("hello")
	_ = l.Close()
}
