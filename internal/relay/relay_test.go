package relay

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"collab-editor-be/internal/pkg/logger"
	"collab-editor-be/internal/repository/contract"
	"collab-editor-be/internal/repository/memory"
	"collab-editor-be/pkg/crdt"
	"collab-editor-be/pkg/events"
	"collab-editor-be/pkg/extension"
	"collab-editor-be/pkg/session"
	"collab-editor-be/pkg/transport"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "relay-test-secret"

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type testRelay struct {
	hub    *Hub
	url    string
	repo   contract.DocumentUpdateRepository
	events *recordedEvents
}

func startRelay(t *testing.T, rdb *redis.Client, repo contract.DocumentUpdateRepository) *testRelay {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	if repo == nil {
		repo = memory.NewDocumentUpdateRepository(time.Hour)
	}
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	updateLog := NewUpdateLog(pubSub, pubSub, "document.updates", repo, logger.NewNop())
	require.NoError(t, updateLog.Start(ctx))

	recorded := &recordedEvents{}
	hub := NewHub(HubConfig{Redis: rdb, Log: updateLog, Events: recorded})
	require.NoError(t, hub.Start(ctx))

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	NewHandler(hub, NewAuthenticator(testSecret), logger.NewNop()).RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)

	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(time.Second)
		cancel()
		_ = pubSub.Close()
	})

	return &testRelay{hub: hub, url: "ws://" + ln.Addr().String() + "/collab", repo: repo, events: recorded}
}

type peer struct {
	doc      *crdt.Tree
	provider *transport.Provider
	synced   chan struct{}
	failed   chan string
}

func connect(t *testing.T, url, document, token string) *peer {
	t.Helper()
	p := &peer{
		doc:    crdt.NewTree(document, ""),
		synced: make(chan struct{}),
		failed: make(chan string, 1),
	}
	var once sync.Once
	p.provider = transport.Connect(transport.Config{URL: url, DocumentName: document, Token: token}, p.doc, transport.Handlers{
		OnSynced:               func() { once.Do(func() { close(p.synced) }) },
		OnAuthenticationFailed: func(reason string) { p.failed <- reason },
	})
	t.Cleanup(p.provider.Destroy)
	return p
}

func (p *peer) waitSynced(t *testing.T) {
	t.Helper()
	select {
	case <-p.synced:
	case <-time.After(5 * time.Second):
		t.Fatal("peer did not sync")
	}
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := NewAuthenticator(testSecret).Issue(user, time.Hour)
	require.NoError(t, err)
	return tok
}

func writeParagraph(t *testing.T, doc *crdt.Tree, text string) {
	t.Helper()
	para, err := doc.ApplyLocal(crdt.Op{Kind: crdt.OpInsert, Parent: crdt.RootID, Type: crdt.TypeParagraph})
	require.NoError(t, err)
	_, err = doc.ApplyLocal(crdt.Op{Kind: crdt.OpInsert, Parent: para.ID, Type: crdt.TypeText, Text: text})
	require.NoError(t, err)
}

func hasText(doc *crdt.Tree, text string) func() bool {
	return func() bool {
		return doc.Snapshot().Find(func(n *crdt.Node) bool { return n.IsText() && n.Text == text }) != nil
	}
}

func TestRelay_SyncsPeers(t *testing.T) {
	relay := startRelay(t, nil, nil)

	alice := connect(t, relay.url, "doc-42", token(t, "alice"))
	alice.waitSynced(t)
	writeParagraph(t, alice.doc, "from alice")

	// A late joiner receives the room state on sync.
	bob := connect(t, relay.url, "doc-42", token(t, "bob"))
	bob.waitSynced(t)
	assert.Eventually(t, hasText(bob.doc, "from alice"), 5*time.Second, 20*time.Millisecond)

	writeParagraph(t, bob.doc, "from bob")
	assert.Eventually(t, hasText(alice.doc, "from bob"), 5*time.Second, 20*time.Millisecond)

	rooms, clients := relay.hub.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 2, clients)
}

func TestRelay_RoomsAreIsolated(t *testing.T) {
	relay := startRelay(t, nil, nil)

	alice := connect(t, relay.url, "doc-1", token(t, "alice"))
	bob := connect(t, relay.url, "doc-2", token(t, "bob"))
	alice.waitSynced(t)
	bob.waitSynced(t)

	writeParagraph(t, alice.doc, "only doc-1")
	room, ok := relay.hub.Room("doc-1")
	require.True(t, ok)
	assert.Eventually(t, hasText(room.Document(), "only doc-1"), 5*time.Second, 20*time.Millisecond)
	assert.False(t, hasText(bob.doc, "only doc-1")())
}

func TestRelay_RejectsInvalidToken(t *testing.T) {
	relay := startRelay(t, nil, nil)

	forged, err := NewAuthenticator("other-secret").Issue("mallory", time.Hour)
	require.NoError(t, err)
	p := connect(t, relay.url, "doc-42", forged)

	select {
	case reason := <-p.failed:
		assert.Equal(t, "invalid token", reason)
	case <-time.After(5 * time.Second):
		t.Fatal("expected auth_failed")
	}
	_, open := relay.hub.Room("doc-42")
	assert.False(t, open)
}

func TestRelay_PersistsCompactsAndReplays(t *testing.T) {
	relay := startRelay(t, nil, nil)
	ctx := context.Background()

	alice := connect(t, relay.url, "doc-42", token(t, "alice"))
	alice.waitSynced(t)
	writeParagraph(t, alice.doc, "durable")

	assert.Eventually(t, func() bool {
		n, err := relay.repo.Count(ctx, "doc-42")
		return err == nil && n >= 2
	}, 5*time.Second, 20*time.Millisecond)

	alice.provider.Destroy()
	assert.Eventually(t, func() bool {
		_, open := relay.hub.Room("doc-42")
		return !open
	}, 5*time.Second, 20*time.Millisecond)

	log, err := relay.repo.FindByDocument(ctx, "doc-42")
	require.NoError(t, err)
	require.NotEmpty(t, log)
	assert.True(t, log[0].Snapshot)

	bob := connect(t, relay.url, "doc-42", token(t, "bob"))
	bob.waitSynced(t)
	assert.Eventually(t, hasText(bob.doc, "durable"), 5*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		types := relay.events.types()
		return len(types) >= 3 &&
			types[0] == events.TypeDocumentOpened &&
			types[1] == events.TypeDocumentClosed &&
			types[2] == events.TypeDocumentOpened
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRelay_FansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return rdb
	}

	repo := memory.NewDocumentUpdateRepository(time.Hour)
	east := startRelay(t, newClient(), repo)
	west := startRelay(t, newClient(), repo)
	require.NotEqual(t, east.hub.Instance(), west.hub.Instance())

	alice := connect(t, east.url, "doc-42", token(t, "alice"))
	bob := connect(t, west.url, "doc-42", token(t, "bob"))
	alice.waitSynced(t)
	bob.waitSynced(t)

	writeParagraph(t, alice.doc, "cross instance")
	assert.Eventually(t, hasText(bob.doc, "cross instance"), 5*time.Second, 20*time.Millisecond)

	writeParagraph(t, bob.doc, "and back")
	assert.Eventually(t, hasText(alice.doc, "and back"), 5*time.Second, 20*time.Millisecond)
}

func TestRelay_EditorSessionLoads(t *testing.T) {
	relay := startRelay(t, nil, nil)

	seed := connect(t, relay.url, "doc-7", token(t, "alice"))
	seed.waitSynced(t)
	writeParagraph(t, seed.doc, "hello")

	loaded := make(chan struct{})
	s, err := session.Create(context.Background(), session.Config{
		DocumentName: "doc-7",
		URL:          relay.url,
		Token:        token(t, "carol"),
		Editable:     true,
		Workspace:    &extension.WorkspaceSettings{Marks: []string{"bold"}},
		OnLoad:       func() { close(loaded) },
	})
	require.NoError(t, err)
	t.Cleanup(s.Destroy)

	select {
	case <-loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not load")
	}
	assert.Equal(t, transport.StatusConnected, s.Status())
	assert.Eventually(t, func() bool {
		return s.Document().Snapshot().Find(func(n *crdt.Node) bool { return n.IsText() && n.Text == "hello" }) != nil
	}, 5*time.Second, 20*time.Millisecond)
}
