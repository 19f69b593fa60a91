package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/klicktape/backend/internal/cache"
	"github.com/klicktape/backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitializeForTesting()
	m.Run()
}

func newTestStore(t *testing.T) (*PendingReferralStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := cache.NewRedisClientFromExisting(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewPendingReferralStore(rc), mr
}

func TestVerifySuccess(t *testing.T) {
	var gotBody verifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, verifyPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, _ := newTestStore(t)
	client := NewClient(server.URL, store)

	result, err := client.Verify(context.Background(), "tok-123", "signup")
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, "signup", gotBody.Type)
	assert.Equal(t, "tok-123", gotBody.TokenHash)
}

func TestVerifyDefaultsTypeToSignup(t *testing.T) {
	var gotBody verifyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, _ := newTestStore(t)
	client := NewClient(server.URL, store)

	_, err := client.Verify(context.Background(), "tok-123", "")
	require.NoError(t, err)
	assert.Equal(t, "signup", gotBody.Type)
}

func TestVerifyErrorKinds(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    verifyErrorResponse
		wantKind    ErrorKind
		wantMessage string
	}{
		{
			name:        "expired token",
			status:      http.StatusForbidden,
			response:    verifyErrorResponse{Error: "otp_expired", ErrorDescription: "Email link has expired"},
			wantKind:    KindExpired,
			wantMessage: "Email link has expired",
		},
		{
			name:        "invalid token",
			status:      http.StatusForbidden,
			response:    verifyErrorResponse{Error: "otp_invalid", ErrorDescription: "Token is invalid or already used"},
			wantKind:    KindInvalid,
			wantMessage: "Token is invalid or already used",
		},
		{
			name:        "unauthorized maps to invalid",
			status:      http.StatusUnauthorized,
			response:    verifyErrorResponse{},
			wantKind:    KindInvalid,
			wantMessage: "verification service returned status 401",
		},
		{
			name:        "unknown failure is generic",
			status:      http.StatusInternalServerError,
			response:    verifyErrorResponse{Error: "unexpected_failure"},
			wantKind:    KindGeneric,
			wantMessage: "unexpected_failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.response)
			}))
			defer server.Close()

			store, _ := newTestStore(t)
			client := NewClient(server.URL, store)

			result, err := client.Verify(context.Background(), "tok-123", "signup")
			assert.Nil(t, result)
			require.Error(t, err)

			var verr *Error
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantKind, verr.Kind)
			assert.Equal(t, tt.wantMessage, verr.Message)
		})
	}
}

func TestVerifyMissingToken(t *testing.T) {
	store, _ := newTestStore(t)
	client := NewClient("http://localhost:0", store)

	_, err := client.Verify(context.Background(), "", "signup")
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindInvalid, verr.Kind)
}

func TestCompleteReferralAsync(t *testing.T) {
	called := make(chan referralRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != referralPath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body referralRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		called <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store, _ := newTestStore(t)
	client := NewClient(server.URL, store)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "user-1", "FRIEND2026"))

	client.CompleteReferralAsync("user-1")

	select {
	case body := <-called:
		assert.Equal(t, "FRIEND2026", body.ReferralCode)
	case <-time.After(2 * time.Second):
		t.Fatal("referral completion never reached the service")
	}

	// Code is consumed even though the call succeeded
	code, err := store.Consume(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, code)
}

func TestCompleteReferralAsyncClearsCodeOnFailure(t *testing.T) {
	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	store, _ := newTestStore(t)
	client := NewClient(server.URL, store)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "user-2", "FRIEND2026"))

	client.CompleteReferralAsync("user-2")

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("referral completion never reached the service")
	}

	code, err := store.Consume(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, code, "pending code should be cleared regardless of outcome")
}

func TestCompleteReferralAsyncNoPendingCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when there is no pending code")
	}))
	defer server.Close()

	store, _ := newTestStore(t)
	client := NewClient(server.URL, store)

	client.CompleteReferralAsync("user-3")
	time.Sleep(200 * time.Millisecond)
}

func TestPendingReferralStoreValidation(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.Set(context.Background(), "", "code"))
	assert.Error(t, store.Set(context.Background(), "user", ""))
}
