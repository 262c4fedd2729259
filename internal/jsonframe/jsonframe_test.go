package jsonframe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_SingleValue(t *testing.T) {
	t.Parallel()

	rec, consumed, err := Next([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"a":1}`), rec)
	assert.Equal(t, 7, consumed)
}

func TestNext_ConcatenatedValues(t *testing.T) {
	t.Parallel()

	buf := []byte(`{"a":1}{"b":2}`)

	first, n, err := Next(buf)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"a":1}`), first)

	second, m, err := Next(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"b":2}`), second)
	assert.Equal(t, len(buf), n+m)
}

func TestNext_Incomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "open brace", input: `{`},
		{name: "mid object", input: `{"a":`},
		{name: "mid string", input: `{"a":"trunc`},
		{name: "mid array", input: `[1,2,`},
		{name: "whitespace only", input: "  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, consumed, err := Next([]byte(tt.input))
			assert.ErrorIs(t, err, ErrIncomplete)
			assert.Zero(t, consumed)
		})
	}
}

func TestNext_InvalidIsNotIncomplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "stray close brace", input: `}`},
		{name: "bad token", input: `{"a":#}`},
		{name: "trailing comma", input: `{"a":1,}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Next([]byte(tt.input))
			assert.ErrorIs(t, err, ErrInvalid)
			assert.NotErrorIs(t, err, ErrIncomplete)
		})
	}
}

func TestNext_LeadingWhitespaceCounted(t *testing.T) {
	t.Parallel()

	rec, consumed, err := Next([]byte("  \n{\"a\":1}rest"))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage(`{"a":1}`), rec)
	// Consumed covers the whitespace so the caller's buffer advance
	// reconstructs the original byte stream exactly.
	assert.Equal(t, 10, consumed)
}

// TestNext_RoundTrip verifies the framing invariant: consumed prefixes plus
// the residual unconsumed buffer reproduce the received bytes exactly.
func TestNext_RoundTrip(t *testing.T) {
	t.Parallel()

	stream := []byte(`{"id":1,"op":"insert"} {"id":2,"op":"update"}[1,2,3]"tail`)

	var consumedTotal int
	rest := stream
	for {
		_, n, err := Next(rest)
		if err != nil {
			require.ErrorIs(t, err, ErrIncomplete)
			break
		}
		consumedTotal += n
		rest = rest[n:]
	}

	assert.Equal(t, stream, append(stream[:consumedTotal:consumedTotal], rest...))
	assert.Equal(t, []byte(`"tail`), rest)
}

// TestNext_SplitIndependence verifies that framing does not depend on chunk
// boundaries: draining a buffer fed byte-by-byte yields the same records as
// parsing the whole stream at once.
func TestNext_SplitIndependence(t *testing.T) {
	t.Parallel()

	stream := []byte(`{"a":1}{"b":[2,3]}{"c":"x}y"}`)

	whole := drain(t, [][]byte{stream})
	byteWise := drain(t, split(stream, 1))
	oddSplits := drain(t, split(stream, 5))

	assert.Equal(t, whole, byteWise)
	assert.Equal(t, whole, oddSplits)
	assert.Len(t, whole, 3)
}

func drain(t *testing.T, chunks [][]byte) []string {
	t.Helper()
	var (
		buf  []byte
		recs []string
	)
	for _, chunk := range chunks {
		buf = append(buf, chunk...)
		for {
			rec, n, err := Next(buf)
			if err != nil {
				require.ErrorIs(t, err, ErrIncomplete)
				break
			}
			recs = append(recs, string(rec))
			buf = buf[n:]
		}
	}
	return recs
}

func split(stream []byte, size int) [][]byte {
	var chunks [][]byte
	for len(stream) > size {
		chunks = append(chunks, stream[:size])
		stream = stream[size:]
	}
	return append(chunks, stream)
}

func BenchmarkNext(b *testing.B) {
	var buf bytes.Buffer
	for i := 0; i < 64; i++ {
		fmt.Fprintf(&buf, `{"id":%d,"name":"row-%d","active":true}`, i, i)
	}
	stream := buf.Bytes()

	b.SetBytes(int64(len(stream)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rest := stream
		for len(rest) > 0 {
			_, n, err := Next(rest)
			if err != nil {
				b.Fatal(err)
			}
			rest = rest[n:]
		}
	}
}
