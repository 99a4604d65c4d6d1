package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placemate/mailsentry/internal/mail"
)

func TestGetToken(t *testing.T) {
	var gotPath, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "at-1", "refresh_token": "rt-1", "expires_at": 1700000000}`))
	}))
	defer srv.Close()

	client := NewBetterAuthClient(srv.URL, "service-key")

	token, err := client.GetToken(context.Background(), "user-1", mail.ProviderGmail)
	require.NoError(t, err)

	assert.Equal(t, "/api/auth/users/user-1/accounts/google/token", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "at-1", token.AccessToken)
	assert.Equal(t, "rt-1", token.RefreshToken)
	assert.True(t, token.Expiry.Equal(time.Unix(1700000000, 0)))
}

func TestGetTokenOutlookSlug(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"access_token": "at-2", "refresh_token": "", "expires_at": 1700000000}`))
	}))
	defer srv.Close()

	client := NewBetterAuthClient(srv.URL, "service-key")

	_, err := client.GetToken(context.Background(), "user-1", mail.ProviderOutlook)
	require.NoError(t, err)
	assert.Equal(t, "/api/auth/users/user-1/accounts/microsoft/token", gotPath)
}

func TestGetTokenNotConnected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewBetterAuthClient(srv.URL, "service-key")

	_, err := client.GetToken(context.Background(), "user-1", mail.ProviderGmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no google account connected")
}

func TestGetTokenUnsupportedProvider(t *testing.T) {
	client := NewBetterAuthClient("http://localhost:0", "service-key")

	_, err := client.GetToken(context.Background(), "user-1", mail.Provider("YAHOO"))
	assert.Error(t, err)
}
