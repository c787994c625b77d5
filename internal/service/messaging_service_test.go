package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armada-rental/rental-service/internal/config"
	"github.com/armada-rental/rental-service/internal/domain"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0812-3456-7890":   "6281234567890",
		"+62 812 3456 789": "62812345678",
		"(021) 555.0199":   "62215550199",
	}
	for raw, want := range cases {
		got, err := NormalizePhone(raw, "62")
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	for _, raw := range []string{"", "12345", "0812abc", "62+812345678"} {
		_, err := NormalizePhone(raw, "62")
		assert.Error(t, err, raw)
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "gw-token", r.Header.Get("Authorization"))
		if r.PostForm.Get("target") == "6281111111111" {
			writeTestJSON(w, `{"status":false,"reason":"target invalid"}`)
			return
		}
		assert.Equal(t, "6281234567890", r.PostForm.Get("target"))
		assert.Equal(t, "Your driver is on the way", r.PostForm.Get("message"))
		writeTestJSON(w, `{"status":true,"detail":"success! message in queue"}`)
	}))
	defer srv.Close()

	svc := NewMessagingService(config.MessagingConfig{URL: srv.URL, Token: "gw-token", CountryCode: "62", Timeout: time.Second}, nil)
	actor := &domain.User{ID: "u-trips", Role: domain.RoleStaffTrips}
	ctx := context.Background()

	receipt, err := svc.Send(ctx, actor, "0812-3456-7890", " Your driver is on the way ")
	require.NoError(t, err)
	assert.True(t, receipt.Status)
	assert.Equal(t, "6281234567890", receipt.Target)

	_, err = svc.Send(ctx, actor, "081111111111", "hi")
	assert.Equal(t, "UPSTREAM_FAILED", errorCode(err))

	_, err = svc.Send(ctx, actor, "0812-3456-7890", "   ")
	assert.Equal(t, "VALIDATION_FAILED", errorCode(err))
}

func TestSendMessageDisabled(t *testing.T) {
	svc := NewMessagingService(config.MessagingConfig{}, nil)
	assert.False(t, svc.Enabled())
	_, err := svc.Send(context.Background(), &domain.User{ID: "u"}, "081234567890", "hi")
	assert.Equal(t, "MESSAGING_DISABLED", errorCode(err))
}
