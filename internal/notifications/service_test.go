package notifications_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"curator/internal/notifications"
	"curator/internal/testsupport"
)

func TestNoopServiceWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""

	service := notifications.NewService(cfg)
	if err := service.NotifyImportCompleted(context.Background(), "Anything"); err != nil {
		t.Fatalf("noop notification failed: %v", err)
	}
}

func TestNtfySendsHeaders(t *testing.T) {
	var gotTitle, gotTags, gotPriority, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL

	service := notifications.NewService(cfg)
	if err := service.NotifyReviewNeeded(context.Background(), "Giant Steps", "low_confidence"); err != nil {
		t.Fatalf("NotifyReviewNeeded failed: %v", err)
	}
	if gotTitle != "Curator - Review Needed" {
		t.Errorf("unexpected title %q", gotTitle)
	}
	if gotTags != "curator,inbox,review" {
		t.Errorf("unexpected tags %q", gotTags)
	}
	if gotPriority != "high" {
		t.Errorf("unexpected priority %q", gotPriority)
	}
	if gotBody == "" {
		t.Error("expected message body")
	}
}

func TestNtfyErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL

	service := notifications.NewService(cfg)
	if err := service.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
