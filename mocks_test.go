package auth_test

import (
	"context"
	"testing"

	auth "github.com/FlameGreat-1/nswcleaningcompany-sub001"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotifier implements auth.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, kind auth.NotificationKind, user *auth.User, data map[string]any) error {
	args := m.Called(ctx, kind, user, data)
	return args.Error(0)
}

func TestPasswordResetRequestNotifiesWithTokenValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "client@example.com")

	var issued *auth.IssuedToken
	notifier := &MockNotifier{}
	notifier.On("Send",
		mock.Anything,
		auth.NotifyPasswordReset,
		mock.MatchedBy(func(u *auth.User) bool { return u.ID == user.ID }),
		mock.MatchedBy(func(data map[string]any) bool {
			value, ok := data["token"].(string)
			return ok && len(value) == 43 && data["ip_address"] == "198.51.100.4"
		}),
	).Return(nil).Once()

	opts := append(f.flowOptions(), auth.WithFlowNotifier(notifier))
	handler := auth.NewRequestPasswordResetHandler(f.repo, f.tokens, opts...)
	err := handler.Execute(ctx, auth.RequestPasswordResetMessage{
		Email:       "client@example.com",
		RequesterIP: "198.51.100.4",
		OnResponse: func(r *auth.RequestPasswordResetResponse) {
			issued = r.Token
		},
	})
	require.NoError(t, err)
	require.NotNil(t, issued)

	notifier.AssertExpectations(t)
	sent := notifier.Calls[0].Arguments.Get(3).(map[string]any)
	assert.Equal(t, issued.Value, sent["token"])
}

func TestResendVerificationSkipsNotifierForVerifiedUser(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "verified@example.com", func(u *auth.User) {
		u.IsVerified = true
	})

	notifier := &MockNotifier{}
	opts := append(f.flowOptions(), auth.WithFlowNotifier(notifier))
	handler := auth.NewResendVerificationHandler(f.repo, f.tokens, opts...)
	require.NoError(t, handler.Execute(context.Background(), auth.ResendVerificationMessage{
		Email: "verified@example.com",
	}))

	notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
