package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcin-skalski/review-radar/internal/logging"
)

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter(logging.Discard())
	r.Handle("echo", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var in struct {
			Force bool `json:"force"`
		}
		if err := Decode(payload, &in); err != nil {
			return nil, err
		}
		return in.Force, nil
	})
	r.Handle("fail", func(context.Context, json.RawMessage) (any, error) {
		return nil, errors.New("nope")
	})
	r.Handle("panic", func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	})

	tests := []struct {
		name    string
		req     Request
		success bool
		data    any
		errText string
	}{
		{"success", Request{Action: "echo", Payload: json.RawMessage(`{"force":true}`)}, true, true, ""},
		{"empty payload", Request{Action: "echo"}, true, false, ""},
		{"bad payload", Request{Action: "echo", Payload: json.RawMessage(`[`)}, false, nil, "unexpected end"},
		{"handler error", Request{Action: "fail"}, false, nil, "nope"},
		{"panic", Request{Action: "panic"}, false, nil, "panic: internal error"},
		{"unknown", Request{Action: "missing"}, false, nil, `unknown action "missing"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := r.Dispatch(context.Background(), tt.req)

			assert.Equal(t, tt.success, resp.Success)
			assert.Equal(t, tt.data, resp.Data)
			if tt.errText == "" {
				assert.Empty(t, resp.Error)
			} else {
				assert.Contains(t, resp.Error, tt.errText)
			}
		})
	}
}

func TestRouter_DispatchAsyncAlwaysAnswers(t *testing.T) {
	r := NewRouter(logging.Discard())
	r.Handle("slow", func(ctx context.Context, _ json.RawMessage) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return "done", nil
	})

	for _, action := range []string{"slow", "missing"} {
		select {
		case resp := <-r.DispatchAsync(context.Background(), Request{Action: action}):
			assert.Equal(t, action == "slow", resp.Success)
		case <-time.After(time.Second):
			t.Fatalf("no response for %s", action)
		}
	}
}

func TestRouter_Actions(t *testing.T) {
	r := NewRouter(logging.Discard())
	noop := func(context.Context, json.RawMessage) (any, error) { return nil, nil }
	r.Handle("b", noop)
	r.Handle("a", noop)

	assert.Equal(t, []string{"a", "b"}, r.Actions())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
}

func TestDecode(t *testing.T) {
	v := struct{ N int }{N: 5}

	require.NoError(t, Decode(nil, &v))
	require.NoError(t, Decode(json.RawMessage("null"), &v))
	assert.Equal(t, 5, v.N)

	require.NoError(t, Decode(json.RawMessage(`{"N":2}`), &v))
	assert.Equal(t, 2, v.N)
}

func TestRouter_SendMatchesClientShape(t *testing.T) {
	r := NewRouter(logging.Discard())
	r.Handle("count", func(ctx context.Context, payload json.RawMessage) (any, error) {
		var in struct{ N int }
		if err := Decode(payload, &in); err != nil {
			return nil, err
		}
		return map[string]int{"n": in.N + 1}, nil
	})

	resp, err := r.Send(context.Background(), "count", map[string]int{"N": 1})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var out struct{ N int `json:"n"` }
	require.NoError(t, DecodeData(resp.Data, &out))
	assert.Equal(t, 2, out.N)
}

func TestDecodeData(t *testing.T) {
	var out struct{ Text string }

	require.NoError(t, DecodeData(json.RawMessage(`{"Text":"raw"}`), &out))
	assert.Equal(t, "raw", out.Text)

	require.NoError(t, DecodeData(struct{ Text string }{"typed"}, &out))
	assert.Equal(t, "typed", out.Text)

	require.NoError(t, DecodeData(nil, &out))
	assert.Equal(t, "typed", out.Text)
}
