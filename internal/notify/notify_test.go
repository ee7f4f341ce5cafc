package notify

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Elizabethomito/gigledger/internal/ledger"
	"github.com/Elizabethomito/gigledger/internal/models"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func intPtr(i int) *int { return &i }

func sampleEvents() []ledger.Event {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []ledger.Event{
		{ID: "e1", Kind: ledger.EventProjectAdded, At: at, User: "0xA11CE", Index: intPtr(0), ContentHash: "h1"},
		{ID: "e2", Kind: ledger.EventReviewAdded, At: at, User: "0xB0B", Reviewer: "0xA11CE"},
		{ID: "e3", Kind: ledger.EventBadgeMinted, At: at, User: "0xB0B", BadgeID: 1, URI: "ipfs://x"},
	}
}

func TestMulti_FansOutInOrder(t *testing.T) {
	var order []string
	mk := func(name string) ledger.Notifier {
		return ledger.NotifierFunc(func(_ context.Context, events []ledger.Event) {
			order = append(order, name)
			assert.Len(t, events, 3)
		})
	}
	Multi{mk("a"), mk("b")}.Notify(context.Background(), sampleEvents())
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestLog_OneRecordPerEvent(t *testing.T) {
	var buf bytes.Buffer
	Log{Logger: slog.New(slog.NewTextHandler(&buf, nil))}.Notify(context.Background(), sampleEvents())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "msg=ProjectAdded")
	assert.Contains(t, lines[0], "content_hash=h1")
	assert.Contains(t, lines[1], "reviewer=0xA11CE")
	assert.Contains(t, lines[2], "badge_id=1")
}

func TestAuditLog_History(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "events.jsonl")
	a, err := OpenAuditLog(path, discard())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	a.Notify(context.Background(), sampleEvents())

	alice, err := a.History(context.Background(), "0xA11CE")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "e1", alice[0].ID)
	assert.Equal(t, "e2", alice[1].ID)
	require.NotNil(t, alice[0].Index)
	assert.Equal(t, 0, *alice[0].Index)

	bob, err := a.History(context.Background(), "0xB0B")
	require.NoError(t, err)
	assert.Len(t, bob, 2)

	none, err := a.History(context.Background(), "0xNOBODY")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAuditLog_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	a, err := OpenAuditLog(path, discard())
	require.NoError(t, err)
	a.Notify(context.Background(), sampleEvents()[:1])
	require.NoError(t, a.Close())

	b, err := OpenAuditLog(path, discard())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	b.Notify(context.Background(), sampleEvents()[:1])

	got, err := b.History(context.Background(), "0xA11CE")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestAuditLog_MalformedLineLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	var logs bytes.Buffer
	a, err := OpenAuditLog(path, slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	a.Notify(context.Background(), sampleEvents()[:1])
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	a.Notify(context.Background(), sampleEvents()[1:2])

	got, err := a.History(context.Background(), "0xA11CE")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "line=2")
}

func TestOpenAuditLog_EmptyPath(t *testing.T) {
	_, err := OpenAuditLog("", discard())
	assert.Error(t, err)
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StreamsEvents(t *testing.T) {
	h := NewHub(discard())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)

	all := dial(t, srv, "")
	bobOnly := dial(t, srv, "?user=0xB0B")
	waitSubscribers(t, h, 2)

	h.Notify(context.Background(), sampleEvents())

	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"e1", "e2", "e3"} {
		var e ledger.Event
		require.NoError(t, all.ReadJSON(&e))
		assert.Equal(t, want, e.ID)
	}

	_ = bobOnly.SetReadDeadline(time.Now().Add(2 * time.Second))
	for _, want := range []string{"e2", "e3"} {
		var e ledger.Event
		require.NoError(t, bobOnly.ReadJSON(&e))
		assert.Equal(t, want, e.ID)
		assert.Equal(t, models.Principal("0xB0B"), e.User)
	}
}

func TestHub_RemovesClosedSubscriber(t *testing.T) {
	h := NewHub(discard())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)

	conn := dial(t, srv, "")
	waitSubscribers(t, h, 1)

	require.NoError(t, conn.Close())
	waitSubscribers(t, h, 0)
}
