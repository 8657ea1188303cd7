package media_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/khojghar/khojghar-api/internal/domain"
	"github.com/khojghar/khojghar-api/internal/platform/media"
)

func TestUpload_Success(t *testing.T) {
	var gotPreset, gotFolder, gotPublicID string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotPreset = r.FormValue("upload_preset")
		gotFolder = r.FormValue("folder")
		gotPublicID = r.FormValue("public_id")

		if _, _, err := r.FormFile("file"); err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		w.Write([]byte(`{"secure_url":"https://res.example.com/img/abc.jpg","url":"http://res.example.com/img/abc.jpg"}`))
	}))
	defer ts.Close()

	c := media.NewCloudinaryAt(ts.URL, "unsigned-preset", "listings")
	url, err := c.Upload(context.Background(), "front.jpg", "image/jpeg", strings.NewReader("fake image"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "https://res.example.com/img/abc.jpg" {
		t.Fatalf("expected secure url, got %q", url)
	}
	if gotPreset != "unsigned-preset" || gotFolder != "listings" {
		t.Fatalf("preset=%q folder=%q", gotPreset, gotFolder)
	}
	if gotPublicID == "" {
		t.Fatal("expected generated public_id")
	}
}

func TestUpload_RejectsNonImage(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	c := media.NewCloudinaryAt(ts.URL, "preset", "")
	_, err := c.Upload(context.Background(), "doc.pdf", "application/pdf", strings.NewReader("x"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if called {
		t.Fatal("rejected file must not be sent upstream")
	}
}

func TestUpload_StoreError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	c := media.NewCloudinaryAt(ts.URL, "preset", "")
	if _, err := c.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("x")); err == nil {
		t.Fatal("expected error on upstream failure")
	}
}

func TestUpload_FallsBackToPlainURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"url":"http://res.example.com/img/abc.jpg"}`))
	}))
	defer ts.Close()

	c := media.NewCloudinaryAt(ts.URL, "preset", "")
	url, err := c.Upload(context.Background(), "a.jpg", "image/jpeg", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://res.example.com/img/abc.jpg" {
		t.Fatalf("expected plain url fallback, got %q", url)
	}
}
