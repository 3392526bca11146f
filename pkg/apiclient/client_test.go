package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

func TestDocumentURL(t *testing.T) {
	c := NewClient("http://localhost:8000/", 0)
	tests := []struct {
		path string
		want string
	}{
		{"uploads/cohort_1_book.pdf", "http://localhost:8000/uploads/cohort_1_book.pdf"},
		{"/uploads/cohort_1_book.pdf", "http://localhost:8000/uploads/cohort_1_book.pdf"},
		{`C:\uploads\book.pdf`, "http://localhost:8000/uploads/book.pdf"},
		{`uploads\nested/mixed.pdf`, "http://localhost:8000/uploads/mixed.pdf"},
		{"book.pdf", "http://localhost:8000/uploads/book.pdf"},
		{"my book.pdf", "http://localhost:8000/uploads/my%20book.pdf"},
		{"", ""},
		{"uploads/", ""},
	}
	for _, tc := range tests {
		if got := c.DocumentURL(tc.path); got != tc.want {
			t.Fatalf("DocumentURL(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestClientRequestShapes(t *testing.T) {
	var gotMethod, gotPath, gotQuery string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotBody = nil
		if r.Header.Get("Content-Type") == "application/json" {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/") && r.Method == http.MethodGet:
			_, _ = io.WriteString(w, "[]")
		case strings.Contains(r.URL.Path, "/user/") || strings.Contains(r.URL.Path, "/cohort/"):
			_, _ = io.WriteString(w, "[]")
		default:
			_, _ = io.WriteString(w, "{}")
		}
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0)
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() error
		method string
		path   string
		query  string
		body   map[string]any
	}{
		{"login", func() error { _, err := c.Login(ctx, "admin", "admin@123"); return err },
			http.MethodPost, "/login/", "", map[string]any{"username": "admin", "password": "admin@123"}},
		{"join", func() error { _, err := c.JoinCohort(ctx, 3, 7); return err },
			http.MethodPost, "/cohort-members/", "", map[string]any{"user_id": float64(3), "cohort_id": float64(7)}},
		{"private notes", func() error { _, err := c.PrivateNotes(ctx, 3, 7); return err },
			http.MethodGet, "/private-notes/user/3/cohort/7", "", nil},
		{"public notes", func() error { _, err := c.PublicNotes(ctx, 7); return err },
			http.MethodGet, "/public-notes/cohort/7", "", nil},
		{"chat", func() error { _, err := c.ChatMessages(ctx, 7); return err },
			http.MethodGet, "/chat-messages/cohort/7", "", nil},
		{"members", func() error { _, err := c.CohortMembers(ctx, 7); return err },
			http.MethodGet, "/cohort-members/cohort/7", "", nil},
		{"stats", func() error { _, err := c.AdminStats(ctx, 1); return err },
			http.MethodGet, "/admin/stats", "user_id=1", nil},
		{"activity", func() error { _, err := c.CohortActivity(ctx, 1, 7); return err },
			http.MethodGet, "/admin/cohorts/7/activity", "user_id=1", nil},
		{"cohorts", func() error { _, err := c.ListCohorts(ctx); return err },
			http.MethodGet, "/cohorts/", "", nil},
		{"users page", func() error { _, err := c.ListUsers(ctx, 10, 5); return err },
			http.MethodGet, "/users/", "limit=5&skip=10", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("call failed: %v", err)
			}
			if gotMethod != tc.method || gotPath != tc.path || gotQuery != tc.query {
				t.Fatalf("got %s %s?%s, want %s %s?%s", gotMethod, gotPath, gotQuery, tc.method, tc.path, tc.query)
			}
			for k, v := range tc.body {
				if gotBody[k] != v {
					t.Fatalf("body[%s] = %v, want %v", k, gotBody[k], v)
				}
			}
		})
	}
}

func TestClientReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/stats" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"detail":"Admin access required"}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, 0)

	_, err := c.AdminStats(context.Background(), 2)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "Admin access required" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}

	_, err = c.ListCohorts(context.Background())
	if !errors.As(err, &apiErr) || apiErr.Message != "502 Bad Gateway" {
		t.Fatalf("expected status text fallback, got %v", err)
	}
}

func TestUploadDocumentSendsMultipartFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cohorts/4/upload-pdf" {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		_ = json.NewEncoder(w).Encode(domain.UploadResult{Filename: header.Filename, Path: "/uploads/" + string(content)})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, 0).UploadDocument(context.Background(), 4, "book.pdf", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Filename != "book.pdf" || res.Path != "/uploads/payload" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClientHonoursContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(srv.URL, 0).ListCohorts(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
