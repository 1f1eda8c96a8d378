package callmebot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haowern98/Telebot/internal/domain"
)

func testSettings() domain.Settings {
	return domain.Settings{
		Language:     "en-US-Standard-B",
		Repeat:       2,
		Timeout:      30,
		SendTextCopy: true,
	}
}

func newTestClient(endpoint string) *Client {
	return New(Config{Endpoint: endpoint, Timeout: 2 * time.Second, MaxMessageLen: 256}, zap.NewNop())
}

func TestDeliverSendsWireParams(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Deliver(context.Background(), "alice_w", "take   your    pills", testSettings())
	require.NoError(t, err)

	require.Equal(t, "web", got.Get("source"))
	require.Equal(t, "@alice_w", got.Get("user"), "bare username gains its @")
	require.Equal(t, "take your pills", got.Get("text"), "whitespace collapsed")
	require.Equal(t, "en-US-Standard-B", got.Get("lang"))
	require.Equal(t, "2", got.Get("rpt"))
	require.Equal(t, "yes", got.Get("cc"))
	require.Equal(t, "30", got.Get("timeout"))
}

func TestDeliverNonSuccessIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not authorized", http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.Deliver(context.Background(), "@alice", "hello out there", testSettings())
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
	require.Contains(t, err.Error(), "not authorized")
}

func TestDeliverTransportErrorIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse the connection

	c := newTestClient(srv.URL)
	err := c.Deliver(context.Background(), "@alice", "hello out there", testSettings())
	require.Error(t, err)
}

func TestDeliverRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Deliver(ctx, "@alice", "hello out there", testSettings())
	require.Error(t, err)
}

func TestCleanMessageTruncates(t *testing.T) {
	c := newTestClient("http://example.invalid")

	long := strings.Repeat("a", 300)
	got := c.CleanMessage(long)
	require.Len(t, got, 256)
	require.True(t, strings.HasSuffix(got, "..."))

	require.Equal(t, "short one", c.CleanMessage("  short   one "))
}

func TestCleanMessageCountsCharactersNotBytes(t *testing.T) {
	c := newTestClient("http://example.invalid")

	// 200 two-byte characters fit within the 256-character limit untouched.
	cyrillic := strings.Repeat("я", 200)
	require.Equal(t, cyrillic, c.CleanMessage(cyrillic))

	got := c.CleanMessage(strings.Repeat("я", 300))
	require.True(t, utf8.ValidString(got), "truncation must not split a rune")
	require.Equal(t, 256, utf8.RuneCountInString(got))
	require.True(t, strings.HasSuffix(got, "..."))
}

func TestValidateContact(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"@alice_w", true},
		{"@ab", false},
		{"@" + strings.Repeat("x", 33), false},
		{"@bad-name", false},
		{"+6591234567", true},
		{"+123", false},
		{"+1234567890123456", false},
		{"+12345abc", false},
		{"6591234567", false}, // digits without +
		{"alice", false},      // name without @
		{"", false},
		{"   ", false},
	}
	for _, c := range cases {
		ok, reason := ValidateContact(c.in)
		require.Equalf(t, c.ok, ok, "%q: %s", c.in, reason)
		if !c.ok {
			require.NotEmptyf(t, reason, "%q must carry a reason", c.in)
		}
	}
}

func TestNormalizeContact(t *testing.T) {
	require.Equal(t, "@alice", NormalizeContact(" alice "))
	require.Equal(t, "@alice", NormalizeContact("@alice"))
	require.Equal(t, "@alice_w", NormalizeContact("alice_w"))
	require.Equal(t, "+6591234567", NormalizeContact("+6591234567"))

	// Digit-leading mixes are not usernames; they stay bare and fail
	// validation instead of sneaking through with an added "@".
	require.Equal(t, "123abc", NormalizeContact("123abc"))
	ok, _ := ValidateContact(NormalizeContact("123abc"))
	require.False(t, ok)
	require.Equal(t, "6591234567", NormalizeContact("6591234567"))
}
