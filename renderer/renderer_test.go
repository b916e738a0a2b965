package renderer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]any{"id": "abc", "count": 2})

	if rec.Code != http.StatusCreated {
		t.Errorf("Response code = %d; want %d", rec.Code, http.StatusCreated)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON body %q: %v", rec.Body.String(), err)
	}
	if got["id"] != "abc" || got["count"] != float64(2) {
		t.Errorf("Body = %v", got)
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "job not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("Response code = %d; want %d", rec.Code, http.StatusNotFound)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"job not found"}` {
		t.Errorf("Body = %q", body)
	}
}

func TestReadJSON(t *testing.T) {
	type request struct {
		Command string   `json:"command"`
		Args    []string `json:"arguments"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"command":"convert","arguments":["--format=png"]}`, false},
		{"empty", ``, true},
		{"malformed", `{"command":`, true},
		{"unknown field", `{"command":"convert","bogus":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/jobs", strings.NewReader(tt.body))
			var v request
			err := ReadJSON(req, &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadJSON() error = %v; wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (v.Command != "convert" || len(v.Args) != 1) {
				t.Errorf("Decoded %+v", v)
			}
		})
	}
}

func TestLoggerRecordsStatus(t *testing.T) {
	var seen int
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		seen = w.(*statusRecorder).status
	})
	rec := httptest.NewRecorder()
	Logger(inner).ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))

	if seen != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, recorded %d; want %d", rec.Code, seen, http.StatusTeapot)
	}
	if _, ok := any(&statusRecorder{ResponseWriter: rec}).(http.Flusher); !ok {
		t.Error("statusRecorder should implement http.Flusher")
	}
}

func TestLoggerCountsBytes(t *testing.T) {
	var rec *statusRecorder
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec = w.(*statusRecorder)
		w.Write([]byte("scene"))
		w.Write([]byte("s"))
	})
	resp := httptest.NewRecorder()
	Logger(inner).ServeHTTP(resp, httptest.NewRequest("DELETE", "/jobs/1", nil))

	if rec.bytes != 6 || rec.status != http.StatusOK {
		t.Errorf("recorded %d bytes status %d; want 6 bytes status 200", rec.bytes, rec.status)
	}
	if resp.Body.String() != "scenes" {
		t.Errorf("body = %q", resp.Body.String())
	}
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusCreated)
	}))

	tests := []struct {
		method     string
		wantCode   int
		wantCalled bool
	}{
		{"POST", http.StatusCreated, true},
		{"OPTIONS", http.StatusNoContent, false},
	}
	for _, tt := range tests {
		called = false
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/jobs", nil))
		if rec.Code != tt.wantCode || called != tt.wantCalled {
			t.Errorf("%s: code %d called %v; want %d %v", tt.method, rec.Code, called, tt.wantCode, tt.wantCalled)
		}
		for _, want := range corsHeaders {
			if got := rec.Header().Get(want[0]); got != want[1] {
				t.Errorf("%s: %s = %q; want %q", tt.method, want[0], got, want[1])
			}
		}
	}
	if !strings.Contains(corsHeaders[2][1], "Authorization") {
		t.Error("Authorization must be an allowed header")
	}
}

func TestApplyMiddlewares(t *testing.T) {
	var authRoles []AuthRole
	AuthMiddleware = func(next http.Handler, role AuthRole) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authRoles = append(authRoles, role)
			if r.Header.Get("Authorization") != "Bearer ok" {
				Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	t.Cleanup(func() { AuthMiddleware = nil })

	inner := func(w http.ResponseWriter, r *http.Request) { JSON(w, http.StatusOK, "ok") }

	tests := []struct {
		name     string
		role     AuthRole
		token    string
		wantCode int
		wantAuth bool
	}{
		{"public", RolePublic, "", http.StatusOK, false},
		{"admin with token", RoleAdmin, "Bearer ok", http.StatusOK, true},
		{"admin without token", RoleAdmin, "", http.StatusUnauthorized, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authRoles = nil
			req := httptest.NewRequest("GET", "/scenes", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			rec := httptest.NewRecorder()
			ApplyMiddlewares(inner, tt.role).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d; want %d", rec.Code, tt.wantCode)
			}
			if (len(authRoles) > 0) != tt.wantAuth {
				t.Errorf("auth ran for roles %v; want ran=%v", authRoles, tt.wantAuth)
			}
			if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("CORS headers missing")
			}
		})
	}
}

func TestApplyMiddlewaresWithoutAuth(t *testing.T) {
	AuthMiddleware = nil
	rec := httptest.NewRecorder()
	ApplyMiddlewares(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}, RoleAdmin).ServeHTTP(rec, httptest.NewRequest("POST", "/jobs", nil))
	if rec.Code != http.StatusAccepted {
		t.Errorf("code = %d; admin routes run unguarded when no auth is set", rec.Code)
	}
}
