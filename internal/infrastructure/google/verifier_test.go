package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"

	"github.com/taskboard-api/internal/config"
	"github.com/taskboard-api/internal/domain"
)

func fakeValidate(wantToken string) func(context.Context, string, string) (*idtoken.Payload, error) {
	return func(_ context.Context, token, audience string) (*idtoken.Payload, error) {
		if token != wantToken || audience != "client-1" {
			return nil, errors.New("bad token")
		}
		return &idtoken.Payload{
			Subject: "sub-42",
			Claims: map[string]interface{}{
				"email":          "neo@gmail.com",
				"email_verified": true,
				"name":           "Neo",
			},
		}, nil
	}
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier(config.Google{ClientID: "client-1"})
	v.validate = fakeValidate("good")

	id, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "sub-42", id.Sub)
	assert.Equal(t, "neo@gmail.com", id.Email)
	assert.True(t, id.EmailVerified)

	_, err = v.Verify(context.Background(), "forged")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestVerifier_Exchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "auth-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600,"id_token":"good"}`))
	}))
	defer srv.Close()

	v := NewVerifier(config.Google{ClientID: "client-1", ClientSecret: "secret", RedirectURL: "postmessage"})
	v.oauth.Endpoint = oauth2.Endpoint{TokenURL: srv.URL}
	v.validate = fakeValidate("good")

	id, err := v.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "sub-42", id.Sub)

	_, err = v.Exchange(context.Background(), "stale-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
