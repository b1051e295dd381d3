package strava_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	strava "github.com/strautils/strava"
	"github.com/strautils/strava/common/model"
	"github.com/strautils/strava/modules/auth"
)

// fakeStrava serves the token endpoint and a minimal API surface.
func fakeStrava(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("grant_type") == "refresh_token" {
			refreshes.Add(1)
		}
		fmt.Fprintf(w, `{"access_token":"fresh","refresh_token":"rotated","expires_at":%d}`,
			time.Now().Add(6*time.Hour).Unix())
	})
	mux.HandleFunc("/api/v3/athlete", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" && r.Header.Get("Authorization") != "Bearer valid" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"message":"Authorization Error"}`)
			return
		}
		fmt.Fprint(w, `{"id":42,"firstname":"Jo"}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &refreshes
}

func TestClient_CallWithValidCredential(t *testing.T) {
	ts, refreshes := fakeStrava(t)

	store := auth.NewMemoryStore()
	client := strava.New(strava.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Store:        store,
		BaseURL:      ts.URL,
	})
	defer client.Close()

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, client.SaveCredential(context.Background(), model.AthleteAuthInfo{
		AthleteID: 42,
		Token:     model.TokenInfo{AccessToken: "valid", RefreshToken: "r", Expiry: &expiry},
	}))

	got, err := client.Athletes.GetAuthenticatedAthlete(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Jo", got.FirstName)
	assert.Equal(t, int32(0), refreshes.Load(), "valid credential needs no refresh")
}

func TestClient_RefreshesExpiredCredentialBeforeCall(t *testing.T) {
	ts, refreshes := fakeStrava(t)

	store := auth.NewMemoryStore()
	expiry := time.Now().Add(-10 * time.Second)
	require.NoError(t, store.Put(context.Background(), &model.AthleteAuthInfo{
		AthleteID: 42,
		Token:     model.TokenInfo{AccessToken: "expired", RefreshToken: "r", Expiry: &expiry},
	}))

	client := strava.New(strava.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Store:        store,
		BaseURL:      ts.URL,
	})
	defer client.Close()

	got, err := client.Athletes.GetAuthenticatedAthlete(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, int32(1), refreshes.Load())

	// the rotated credential was written through to the store
	stored, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "fresh", stored.Token.AccessToken)
	assert.Equal(t, "rotated", stored.Token.RefreshToken)
}

func TestClient_NoCredentialBlocksCall(t *testing.T) {
	ts, _ := fakeStrava(t)

	client := strava.New(strava.Config{
		ClientID: "id",
		BaseURL:  ts.URL,
		Store:    auth.NewMemoryStore(),
	})
	defer client.Close()

	_, err := client.Athletes.GetAuthenticatedAthlete(context.Background(), 7)
	assert.ErrorIs(t, err, auth.ErrNotConfigured)
}
