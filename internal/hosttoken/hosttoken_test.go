package hosttoken

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathsir75/mmap/internal/typeid"
)

func TestIssueAndValidate(t *testing.T) {
	svc := NewService("test-secret")

	token, sessionID, err := svc.Issue()
	require.NoError(t, err)
	require.NoError(t, typeid.Validate(sessionID, typeid.PrefixSession))

	got, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, sessionID, got)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, _, err := NewService("secret-a").Issue()
	require.NoError(t, err)

	_, err = NewService("secret-b").Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewService("s").Validate("not.a.token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	svc := NewService("test-secret")
	token, sessionID, err := svc.Issue()
	require.NoError(t, err)

	var gotSession string
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/workspace", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, sessionID, gotSession)
	})

	t.Run("query param for websockets", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session/page_x?token="+token, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/workspace", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "missing host token"))
	})

	t.Run("mangled header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/workspace", nil)
		req.Header.Set("Authorization", "Token "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
