package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"collab-editor-be/pkg/crdt"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService speaks the collaboration protocol against one in-memory replica.
type fakeService struct {
	t        *testing.T
	doc      *crdt.Tree
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received chan Frame
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	f := &fakeService{
		t:        t,
		doc:      crdt.NewTree("doc-42", "server"),
		received: make(chan Frame, 32),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/collab"
}

func (f *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			continue
		}
		f.received <- frame

		switch frame.Type {
		case FrameAuth:
			if frame.Token != "secret" {
				f.write(conn, Frame{Type: FrameAuthFailed, Reason: "invalid token"})
				continue
			}
			f.write(conn, Frame{Type: FrameAuthenticated})
		case FrameSync:
			_ = f.doc.ApplyRemote(frame.Update)
			state, _ := f.doc.Serialize()
			f.write(conn, Frame{Type: FrameSync, Update: state})
			f.write(conn, Frame{Type: FrameSynced})
		case FrameUpdate:
			_ = f.doc.ApplyRemote(frame.Update)
		}
	}
}

func (f *fakeService) write(conn *websocket.Conn, frame Frame) {
	data, err := frame.Encode()
	require.NoError(f.t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func (f *fakeService) broadcast(frame Frame) {
	f.mu.Lock()
	conns := append([]*websocket.Conn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		f.write(c, frame)
	}
}

func (f *fakeService) closeAll(code int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
		c.Close()
	}
}

func (f *fakeService) next(t *testing.T, typ string) Frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case fr := <-f.received:
			if fr.Type == typ {
				return fr
			}
		case <-deadline:
			t.Fatalf("no %s frame received", typ)
			return Frame{}
		}
	}
}

// recorder captures handler invocations.
type recorder struct {
	mu         sync.Mutex
	statuses   []Status
	synced     int
	authFailed []string
	closed     []int
	disconnect []error
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnStatus: func(s Status) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
		},
		OnSynced: func() {
			r.mu.Lock()
			r.synced++
			r.mu.Unlock()
		},
		OnAuthenticationFailed: func(reason string) {
			r.mu.Lock()
			r.authFailed = append(r.authFailed, reason)
			r.mu.Unlock()
		},
		OnClose: func(code int, _ string) {
			r.mu.Lock()
			r.closed = append(r.closed, code)
			r.mu.Unlock()
		},
		OnDisconnect: func(err error) {
			r.mu.Lock()
			r.disconnect = append(r.disconnect, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) read(fn func(r *recorder)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

func TestProvider_AuthenticatesAndSyncs(t *testing.T) {
	svc, srv := newFakeService(t)
	_, err := svc.doc.ApplyLocal(crdt.Op{Kind: crdt.OpInsert, Parent: crdt.RootID, Type: crdt.TypeParagraph})
	require.NoError(t, err)

	doc := crdt.NewTree("doc-42", "client")
	rec := &recorder{}
	p := Connect(Config{URL: wsURL(srv), DocumentName: "doc-42", Token: "secret"}, doc, rec.handlers())
	defer p.Destroy()

	auth := svc.next(t, FrameAuth)
	assert.Equal(t, "doc-42", auth.Document)

	require.Eventually(t, p.Synced, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusConnected, p.Status())
	assert.Len(t, doc.Snapshot().Children, 1)

	rec.read(func(r *recorder) {
		assert.Equal(t, []Status{StatusConnecting, StatusConnected}, r.statuses)
		assert.Equal(t, 1, r.synced)
	})

	// A second synced frame is not reported again.
	svc.broadcast(Frame{Type: FrameSynced})
	time.Sleep(50 * time.Millisecond)
	rec.read(func(r *recorder) { assert.Equal(t, 1, r.synced) })
}

func TestProvider_StreamsLocalAndAppliesRemote(t *testing.T) {
	svc, srv := newFakeService(t)
	doc := crdt.NewTree("doc-42", "client")
	p := Connect(Config{URL: wsURL(srv), DocumentName: "doc-42", Token: "secret"}, doc, Handlers{})
	defer p.Destroy()

	require.Eventually(t, p.Synced, 2*time.Second, 10*time.Millisecond)

	op, err := doc.ApplyLocal(crdt.Op{Kind: crdt.OpInsert, Parent: crdt.RootID, Type: crdt.TypeHeading})
	require.NoError(t, err)
	update := svc.next(t, FrameUpdate)
	decoded, err := crdt.DecodeUpdate(update.Update)
	require.NoError(t, err)
	require.Len(t, decoded.Ops, 1)
	assert.Equal(t, op.ID, decoded.Ops[0].ID)

	remote := crdt.NewTree("doc-42", "other")
	rop, err := remote.ApplyLocal(crdt.Op{Kind: crdt.OpInsert, Parent: crdt.RootID, Type: crdt.TypeParagraph})
	require.NoError(t, err)
	data, err := crdt.EncodeUpdate([]crdt.Op{rop})
	require.NoError(t, err)
	svc.broadcast(Frame{Type: FrameUpdate, Update: data})

	require.Eventually(t, func() bool {
		return doc.Snapshot().Find(func(n *crdt.Node) bool { return n.ID == rop.ID }) != nil
	}, 2*time.Second, 10*time.Millisecond)

	// Remote ops are not echoed back.
	select {
	case fr := <-svc.received:
		assert.NotEqual(t, FrameUpdate, fr.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProvider_AuthenticationFailed(t *testing.T) {
	_, srv := newFakeService(t)
	rec := &recorder{}
	p := Connect(Config{URL: wsURL(srv), DocumentName: "doc-42", Token: "wrong"}, crdt.NewTree("doc-42", ""), rec.handlers())
	defer p.Destroy()

	require.Eventually(t, func() bool { return p.Status() == StatusDisconnected }, 2*time.Second, 10*time.Millisecond)
	rec.read(func(r *recorder) {
		assert.Equal(t, []string{"invalid token"}, r.authFailed)
		assert.Zero(t, r.synced)
	})
}

func TestProvider_ServerCloseIsReported(t *testing.T) {
	svc, srv := newFakeService(t)
	rec := &recorder{}
	p := Connect(Config{URL: wsURL(srv), DocumentName: "doc-42", Token: "secret"}, crdt.NewTree("doc-42", ""), rec.handlers())
	defer p.Destroy()

	require.Eventually(t, p.Synced, 2*time.Second, 10*time.Millisecond)
	svc.closeAll(websocket.CloseGoingAway, "restart")

	require.Eventually(t, func() bool { return p.Status() == StatusDisconnected }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		var n int
		rec.read(func(r *recorder) { n = len(r.disconnect) })
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
	rec.read(func(r *recorder) {
		assert.Equal(t, []int{websocket.CloseGoingAway}, r.closed)
		assert.Equal(t, StatusDisconnected, r.statuses[len(r.statuses)-1])
	})
}

func TestProvider_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	rec := &recorder{}
	p := Connect(Config{URL: url, DocumentName: "doc-42"}, crdt.NewTree("doc-42", ""), rec.handlers())
	defer p.Destroy()

	require.Eventually(t, func() bool {
		var n int
		rec.read(func(r *recorder) { n = len(r.disconnect) })
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StatusDisconnected, p.Status())
}

func TestProvider_DestroyIsFinal(t *testing.T) {
	svc, srv := newFakeService(t)
	rec := &recorder{}
	p := Connect(Config{URL: wsURL(srv), DocumentName: "doc-42", Token: "secret"}, crdt.NewTree("doc-42", ""), rec.handlers())

	require.Eventually(t, p.Synced, 2*time.Second, 10*time.Millisecond)
	var before int
	rec.read(func(r *recorder) { before = len(r.statuses) })

	p.Destroy()
	p.Destroy()

	svc.broadcast(Frame{Type: FrameSynced})
	svc.closeAll(websocket.CloseGoingAway, "")
	time.Sleep(100 * time.Millisecond)

	rec.read(func(r *recorder) {
		assert.Len(t, r.statuses, before)
		assert.Equal(t, 1, r.synced)
		assert.Empty(t, r.disconnect)
		assert.Empty(t, r.closed)
	})
}

func TestDecodeFrame(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"document":"x"}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeFrame([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	f, err := DecodeFrame([]byte(`{"type":"update","update":"e30="}`))
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), f.Update)
}
