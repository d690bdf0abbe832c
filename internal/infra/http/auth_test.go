package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token := SignUserToken("secret", "user-42")
	userID, err := VerifyUserToken("secret", token)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("ожидали user-42, получили %q", userID)
	}
	if _, err := VerifyUserToken("other", token); err == nil {
		t.Fatal("ожидали ошибку для чужого секрета")
	}
	if _, err := VerifyUserToken("secret", "user-42"); err == nil {
		t.Fatal("ожидали ошибку для токена без подписи")
	}
}

func TestUserAuthMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	cases := []struct {
		name   string
		secret string
		header map[string]string
		status int
		user   string
	}{
		{name: "dev header", header: map[string]string{HeaderUserID: "u1"}, status: http.StatusNoContent, user: "u1"},
		{name: "dev missing", status: http.StatusUnauthorized},
		{name: "signed", secret: "s", header: map[string]string{"Authorization": "Bearer " + SignUserToken("s", "u2")}, status: http.StatusNoContent, user: "u2"},
		{name: "signed ignores dev header", secret: "s", header: map[string]string{HeaderUserID: "u3"}, status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			UserAuthMiddleware(tc.secret)(next).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("ожидали статус %d, получили %d", tc.status, rec.Code)
			}
			if seen != tc.user {
				t.Fatalf("ожидали пользователя %q, получили %q", tc.user, seen)
			}
		})
	}
}
