package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func orgScoped(next http.Handler) http.Handler {
	r := chi.NewRouter()
	r.With(requireOrgID).Handle("/orgs/{orgID}/test", next)
	return r
}

func TestRequireOrgIDPassesThrough(t *testing.T) {
	want := uuid.New()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := orgIDFromRequest(r)
		if !ok || orgID != want {
			t.Fatalf("expected org id propagated, got %s / %v", orgID, ok)
		}
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/orgs/"+want.String()+"/test", nil)
	rr := httptest.NewRecorder()
	orgScoped(next).ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected downstream status, got %d", rr.Code)
	}
}

func TestRequireOrgIDRejectsMalformed(t *testing.T) {
	handler := orgScoped(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not run")
	}))

	for _, orgID := range []string{"org-abc", uuid.Nil.String()} {
		req := httptest.NewRequest(http.MethodGet, "/orgs/"+orgID+"/test", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", orgID, rr.Code)
		}
	}
}
