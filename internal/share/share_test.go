package share

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSharer struct {
	result *api.ShareResult
	err    error
	emails []string
}

func (f *fakeSharer) ShareUpload(ctx context.Context, uploadID, email string) (*api.ShareResult, error) {
	f.emails = append(f.emails, email)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSharer) ListShares(ctx context.Context, uploadID string) ([]api.Share, error) {
	return nil, nil
}

func (f *fakeSharer) RevokeShare(ctx context.Context, uploadID, shareID string) (string, error) {
	return "", nil
}

type fakeClipboard struct {
	mu     sync.Mutex
	writes []string
	err    error
}

func (c *fakeClipboard) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, s)
	return nil
}

func TestSubmitRequiresEmail(t *testing.T) {
	f := &fakeSharer{}
	w := New(f, "u1", "feedback.csv")
	w.SetEmail("   ")

	_, err := w.Submit(context.Background())
	assert.ErrorIs(t, err, ErrEmptyEmail)
	assert.Empty(t, f.emails)
}

func TestDeliveredInvitation(t *testing.T) {
	for _, tt := range []struct {
		name   string
		result *api.ShareResult
	}{
		{"explicit true", &api.ShareResult{ShareID: "abc", EmailSent: true}},
		{"without share id", &api.ShareResult{EmailSent: true}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := New(&fakeSharer{result: tt.result}, "u1", "feedback.csv")
			w.SetEmail("a@b.com")
			_, err := w.Submit(context.Background())
			require.NoError(t, err)

			s := w.State()
			assert.True(t, s.Success)
			assert.True(t, s.EmailSent)
			assert.False(t, s.Degraded())
			assert.Empty(t, s.Email, "field cleared after delivery")
			assert.Equal(t, "a@b.com", s.Recipient)
			assert.Empty(t, w.ManualLink())
			assert.ErrorIs(t, w.Copy(), ErrNoLink)
		})
	}
}

func TestUndeliveredInvitationBuildsManualLink(t *testing.T) {
	clip := &fakeClipboard{}
	w := New(&fakeSharer{result: &api.ShareResult{ShareID: "abc", EmailSent: false}}, "u1", "feedback.csv",
		WithSiteOrigin("https://app.productlogik.test/"),
		WithClipboard(clip.write),
		WithCopyReset(40*time.Millisecond),
	)
	w.SetEmail("a@b.com")
	_, err := w.Submit(context.Background())
	require.NoError(t, err)

	s := w.State()
	assert.True(t, s.Degraded())
	assert.Equal(t, "a@b.com", s.Email, "email kept for the manual link")
	assert.Equal(t, "https://app.productlogik.test/signup?email=a@b.com&invite=abc", w.ManualLink())

	require.NoError(t, w.Copy())
	assert.True(t, w.State().Copied)
	assert.Equal(t, []string{"https://app.productlogik.test/signup?email=a%40b.com&invite=abc"}, clip.writes)

	require.Eventually(t, func() bool { return !w.State().Copied }, time.Second, 5*time.Millisecond)
}

func TestCopyAgainExtendsIndicator(t *testing.T) {
	clip := &fakeClipboard{}
	w := New(&fakeSharer{result: &api.ShareResult{ShareID: "abc"}}, "u1", "f.csv",
		WithClipboard(clip.write), WithCopyReset(100*time.Millisecond))
	w.SetEmail("a@b.com")
	_, err := w.Submit(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.Copy())
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, w.Copy())
	time.Sleep(60 * time.Millisecond)
	assert.True(t, w.State().Copied, "second copy restarts the reset delay")
}

func TestCopyFailure(t *testing.T) {
	clip := &fakeClipboard{err: errors.New("no display")}
	w := New(&fakeSharer{result: &api.ShareResult{ShareID: "abc"}}, "u1", "f.csv", WithClipboard(clip.write))
	w.SetEmail("a@b.com")
	_, err := w.Submit(context.Background())
	require.NoError(t, err)

	err = w.Copy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
	assert.False(t, w.State().Copied)
}

func TestResetClearsEverything(t *testing.T) {
	clip := &fakeClipboard{}
	w := New(&fakeSharer{result: &api.ShareResult{ShareID: "abc"}}, "u1", "f.csv",
		WithClipboard(clip.write), WithCopyReset(time.Hour))
	w.SetEmail("a@b.com")
	_, err := w.Submit(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Copy())

	w.Reset()
	assert.Equal(t, State{}, w.State())
	assert.Empty(t, w.ManualLink())
}

func TestSubmitFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", &api.Error{StatusCode: 400, Kind: api.KindDomain, Message: "You cannot share an analysis with yourself"}, "You cannot share an analysis with yourself"},
		{"other", errors.New("boom"), DefaultErrorMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(&fakeSharer{err: tt.err}, "u1", "f.csv")
			w.SetEmail("me@b.com")
			_, err := w.Submit(context.Background())
			require.Error(t, err)

			s := w.State()
			assert.Equal(t, tt.want, s.Error)
			assert.False(t, s.Success)
			assert.False(t, s.Loading)
			assert.Equal(t, "me@b.com", s.Email)
		})
	}
}

func TestDescription(t *testing.T) {
	w := New(&fakeSharer{}, "u1", "feedback.csv")
	assert.Equal(t, `Invite others to view the analysis for "feedback.csv"`, w.Description())
}

func TestWorkflowAgainstMockAPI(t *testing.T) {
	mock := mockapi.NewServer(nil, nil)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	token := mock.AddUser("owner@example.com", "pw", "Owner")
	client := api.NewClient(api.WithBaseURL(srv.URL), api.WithTokenProvider(api.TokenFunc(func() string { return token })))

	res, err := client.Upload(context.Background(), "feedback.csv", strings.NewReader("id,text\n1,hi\n"))
	require.NoError(t, err)

	mock.SetShareEmailFails(true)
	clip := &fakeClipboard{}
	w := New(client, res.UploadID, res.Filename, WithClipboard(clip.write), WithSiteOrigin("http://localhost:5173"))
	w.SetEmail("friend@example.com")

	shared, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, shared.EmailSent)
	assert.Equal(t, "http://localhost:5173/signup?email=friend@example.com&invite="+shared.ShareID, w.ManualLink())

	shares, err := w.List(context.Background())
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "friend@example.com", shares[0].Email)
	assert.Equal(t, "pending", shares[0].Status)

	msg, err := w.Revoke(context.Background(), shared.ShareID)
	require.NoError(t, err)
	assert.Equal(t, "Access revoked for friend@example.com", msg)

	shares, err = w.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, shares)

	// Sharing with oneself is rejected with the server's message.
	w.Reset()
	w.SetEmail("owner@example.com")
	_, err = w.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, "You cannot share an analysis with yourself", w.State().Error)
}
