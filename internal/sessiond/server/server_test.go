package server

import (
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingmark/pingmark/internal/common/uuid"
	"github.com/pingmark/pingmark/internal/sessiond/session"
	"github.com/pingmark/pingmark/pkg/wire"
)

func newTestServer(t *testing.T, maxWorkers int, ttl time.Duration) (*UDPServer, *session.Store) {
	t.Helper()
	store := session.NewStore(ttl)
	srv, err := New("127.0.0.1:0", maxWorkers, store)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		srv.Stop()
		require.NoError(t, <-done)
	})
	return srv, store
}

type testClient struct {
	conn net.Conn
}

func newTestClient(t *testing.T, srv *UDPServer) *testClient {
	t.Helper()
	conn, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn}
}

func (c *testClient) roundTrip(t *testing.T, data []byte) wire.Response {
	t.Helper()
	_, err := c.conn.Write(data)
	require.NoError(t, err)

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, wire.MaxResponseSize)
	n, err := c.conn.Read(buf)
	require.NoError(t, err)
	return wire.DecodeResponse(buf[:n])
}

func TestSessionLifecycle(t *testing.T) {
	srv, store := newTestServer(t, 4, time.Hour)
	client := newTestClient(t, srv)

	rsp := client.roundTrip(t, wire.EncodeRequest(wire.CommandCreateSession, "", ""))
	require.Equal(t, wire.StatusOK, rsp.Status)
	id := rsp.Message
	require.True(t, uuid.IsValid(id))
	assert.Equal(t, 1, store.Len())

	rsp = client.roundTrip(t, wire.EncodeRequest(wire.CommandPing, id, ""))
	assert.Equal(t, wire.Response{Status: wire.StatusPong, Message: "Alive"}, rsp)

	rsp = client.roundTrip(t, wire.EncodeRequest(wire.CommandUpdateData, id, "1724500000"))
	assert.Equal(t, wire.Response{Status: wire.StatusOK, Message: "Data Updated"}, rsp)
	assert.Equal(t, "1724500000", store.Data(id)["last_ping"])

	rsp = client.roundTrip(t, wire.EncodeRequest(wire.CommandCloseSession, id, ""))
	assert.Equal(t, wire.Response{Status: wire.StatusOK, Message: "Session Closed"}, rsp)
	assert.Equal(t, 0, store.Len())

	rsp = client.roundTrip(t, wire.EncodeRequest(wire.CommandPing, id, ""))
	assert.Equal(t, wire.Response{Status: wire.StatusError, Message: "Invalid Session"}, rsp)
}

func TestInvalidMessages(t *testing.T) {
	srv, _ := newTestServer(t, 4, time.Hour)
	client := newTestClient(t, srv)

	cases := []struct {
		name string
		data []byte
		want wire.Response
	}{
		{"garbage", []byte("DIAGNOSTIC_TEST"), wire.Response{Status: wire.StatusError, Message: "Invalid Command"}},
		{"lowercase command", []byte("ping||"), wire.Response{Status: wire.StatusError, Message: "Invalid Command"}},
		{"bad encoding", []byte{0xff, 0xfe, 0xfd}, wire.Response{Status: wire.StatusError, Message: "Invalid Command"}},
		{"ping without session", []byte("PING||"), wire.Response{Status: wire.StatusError, Message: "Invalid Session"}},
		{"update without session", []byte("UPDATE_DATA||payload"), wire.Response{Status: wire.StatusError, Message: "Invalid Session"}},
		{"close unknown session", []byte("CLOSE_SESSION|b1946ac9-2b4a-4e3a-8c1f-d5a3b1946ac9|"), wire.Response{Status: wire.StatusError, Message: "Invalid Session"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, client.roundTrip(t, tc.data))
		})
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	srv, store := newTestServer(t, 4, 50*time.Millisecond)
	client := newTestClient(t, srv)

	rsp := client.roundTrip(t, wire.EncodeRequest(wire.CommandCreateSession, "", ""))
	require.Equal(t, wire.StatusOK, rsp.Status)
	id := rsp.Message

	time.Sleep(120 * time.Millisecond)

	rsp = client.roundTrip(t, wire.EncodeRequest(wire.CommandPing, id, ""))
	assert.Equal(t, wire.Response{Status: wire.StatusError, Message: "Invalid Session"}, rsp)
	assert.Equal(t, 0, store.Len())
}

// Hammers the server from several sockets with a mix of valid and garbage
// messages while only a few workers are allowed. Every message must get a
// response and the loop must stay alive throughout.
func TestBoundedWorkersUnderLoad(t *testing.T) {
	srv, _ := newTestServer(t, 4, time.Hour)

	const clients = 8
	const perClient = 50

	var wg sync.WaitGroup
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			conn, err := net.Dial("udp", srv.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()

			rng := rand.New(rand.NewSource(seed))
			buf := make([]byte, wire.MaxResponseSize)
			for j := 0; j < perClient; j++ {
				var msg []byte
				if rng.Intn(2) == 0 {
					msg = wire.EncodeRequest(wire.CommandCreateSession, "", "")
				} else {
					msg = make([]byte, 1+rng.Intn(32))
					rng.Read(msg)
				}
				if _, err := conn.Write(msg); err != nil {
					errs <- err
					return
				}
				if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
					errs <- err
					return
				}
				if _, err := conn.Read(buf); err != nil {
					errs <- err
					return
				}
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// the loop survived the barrage
	client := newTestClient(t, srv)
	rsp := client.roundTrip(t, wire.EncodeRequest(wire.CommandCreateSession, "", ""))
	assert.Equal(t, wire.StatusOK, rsp.Status)
}

func TestServeTwiceRejected(t *testing.T) {
	srv, _ := newTestServer(t, 1, time.Hour)

	// give the first Serve a moment to take ownership
	time.Sleep(20 * time.Millisecond)
	assert.Error(t, srv.Serve())
}

func TestVersionCompatibility(t *testing.T) {
	assert.True(t, IsVersionCompatible(Version))
	assert.False(t, IsVersionCompatible("0.2.0"))
	assert.False(t, IsVersionCompatible("not-a-version"))
}
