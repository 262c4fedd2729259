package cdc_test

import (
	"context"
	"net"
	"testing"
	"time"

	cdc "github.com/streamhouse/go-maxscale-cdc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoTarget accepts one connection and hands it to the test.
func echoTarget(t *testing.T) (string, int, <-chan net.Conn) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, accepted
}

func TestConnect_RefusedIsError(t *testing.T) {
	t.Parallel()

	// Grab a port and close it again so nothing listens there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	_, err = cdc.Connect(context.Background(), "127.0.0.1", port, time.Second)
	assert.Error(t, err)
}

func TestSession_SendReachesPeer(t *testing.T) {
	t.Parallel()

	host, port, accepted := echoTarget(t)
	session, err := cdc.Connect(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, cdc.StateConnected, session.State())

	require.NoError(t, session.Send([]byte("REQUEST-DATA shop.orders")))

	peer := <-accepted
	defer peer.Close()
	buf := make([]byte, 64)
	n, err := peer.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "REQUEST-DATA shop.orders", string(buf[:n]))
}

func TestSession_ReceiveTimeoutMeansNoDataYet(t *testing.T) {
	t.Parallel()

	host, port, accepted := echoTarget(t)
	session, err := cdc.Connect(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	defer session.Close()
	peer := <-accepted
	defer peer.Close()

	// Peer sends nothing: an expired deadline is an empty result, not an
	// error.
	data, err := session.Receive(64, 20*time.Millisecond)
	assert.NoError(t, err)
	assert.Empty(t, data)
}

func TestSession_PollNeverBlocks(t *testing.T) {
	t.Parallel()

	host, port, accepted := echoTarget(t)
	session, err := cdc.Connect(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	defer session.Close()
	peer := <-accepted
	defer peer.Close()

	started := time.Now()
	data, err := session.Poll(64)
	assert.NoError(t, err)
	assert.Empty(t, data)
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	// Once the peer writes, the same poll picks the bytes up.
	_, err = peer.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		data, err = session.Poll(64)
		return err == nil && len(data) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, data)
}

func TestSession_ReceiveInFIFOOrder(t *testing.T) {
	t.Parallel()

	host, port, accepted := echoTarget(t)
	session, err := cdc.Connect(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	defer session.Close()
	peer := <-accepted
	defer peer.Close()

	_, err = peer.Write([]byte("abcdef"))
	require.NoError(t, err)

	var got []byte
	for len(got) < 6 {
		chunk, err := session.Receive(2, time.Second)
		require.NoError(t, err)
		got = append(got, chunk...)
	}
	assert.Equal(t, "abcdef", string(got))
}

func TestSession_PeerCloseIsTerminal(t *testing.T) {
	t.Parallel()

	host, port, accepted := echoTarget(t)
	session, err := cdc.Connect(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	defer session.Close()
	peer := <-accepted
	require.NoError(t, peer.Close())

	_, err = session.Receive(64, time.Second)
	assert.ErrorIs(t, err, cdc.ErrConnectionClosed)
	assert.Equal(t, cdc.StateClosed, session.State())

	// Terminal: sends are rejected without touching the socket.
	assert.ErrorIs(t, session.Send([]byte("x")), cdc.ErrConnectionClosed)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	host, port, accepted := echoTarget(t)
	session, err := cdc.Connect(context.Background(), host, port, time.Second)
	require.NoError(t, err)
	peer := <-accepted
	defer peer.Close()

	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
	assert.Equal(t, cdc.StateClosed, session.State())
}
