package wscall_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.arsenm.dev/wscall/channel"
	"go.arsenm.dev/wscall/client"
	"go.arsenm.dev/wscall/codec"
	"go.arsenm.dev/wscall/server"
	"go.arsenm.dev/wscall/transport"
)

func registerArith(ch *channel.Channel) error {
	for path, fn := range map[string]any{
		"/arith/add": func(in [2]int) int { return in[0] + in[1] },
		"/arith/sub": func(in [2]int) int { return in[0] - in[1] },
		"/arith/mul": func(in [2]int) int { return in[0] * in[1] },
		"/arith/div": func(in [2]int) (int, error) {
			if in[1] == 0 {
				return 0, channel.NewError("div_zero", "division by zero")
			}
			return in[0] / in[1], nil
		},
	} {
		if err := ch.RegisterFunc(path, fn); err != nil {
			return err
		}
	}
	return nil
}

// connect serves one end of a pipe with s and returns
// a client channel running on the other end
func connect(t *testing.T, ctx context.Context, s *server.Server, cdc codec.Codec, setup func(*channel.Channel) error) *channel.Channel {
	t.Helper()

	sConn, cConn := transport.Pipe()
	go s.ServeConn(ctx, sConn)

	c, err := client.New(cConn, setup, client.WithChannelOptions(channel.WithCodec(cdc)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCalls(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := server.New(registerArith)
	defer s.Close()

	c := connect(t, ctx, s, codec.Default, nil)

	// Call /arith/add
	var add int
	err := c.Call(ctx, "/arith/add", [2]int{5, 5}, &add)
	if err != nil {
		t.Error(err)
	}

	// Call /arith/sub
	var sub int
	err = c.Call(ctx, "/arith/sub", [2]int{5, 5}, &sub)
	if err != nil {
		t.Error(err)
	}

	// Call /arith/mul
	var mul int
	err = c.Call(ctx, "/arith/mul", [2]int{5, 5}, &mul)
	if err != nil {
		t.Error(err)
	}

	// Call /arith/div
	var div int
	err = c.Call(ctx, "/arith/div", [2]int{5, 5}, &div)
	if err != nil {
		t.Error(err)
	}

	if add != 10 {
		t.Errorf("add: expected 10, got %d", add)
	}

	if sub != 0 {
		t.Errorf("sub: expected 0, got %d", sub)
	}

	if mul != 25 {
		t.Errorf("mul: expected 25, got %d", mul)
	}

	if div != 1 {
		t.Errorf("div: expected 1, got %d", div)
	}

	err = c.Call(ctx, "/arith/div", [2]int{5, 0}, &div)
	var rerr *channel.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("div by zero: expected RemoteError, got %v", err)
	}
	if rerr.Message != "division by zero" || rerr.Code != "div_zero" {
		t.Errorf("div by zero: unexpected error %q (code %v)", rerr.Message, rerr.Code)
	}
}

func TestCodecs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Create function to test each codec
	testCodec := func(cdc codec.Codec, name string) {
		s := server.New(registerArith, server.WithChannelOptions(channel.WithCodec(cdc)))
		defer s.Close()

		c := connect(t, ctx, s, cdc, nil)

		var add int
		err := c.Call(ctx, "/arith/add", [2]int{2, 2}, &add)
		if err != nil {
			t.Errorf("codec/%s: %v", name, err)
		}

		if add != 4 {
			t.Errorf("codec/%s: add: expected 4, got %d", name, add)
		}
	}

	// Test all codecs
	testCodec(codec.Msgpack, "msgpack")
	testCodec(codec.JSON, "json")
}

func TestServerPush(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// /time calls the client's /tick n times, then returns n
	s := server.New(func(ch *channel.Channel) error {
		return ch.RegisterFunc("/time", func(ctx context.Context, n int) (int, error) {
			peer, _ := channel.FromContext(ctx)
			for i := 0; i < n; i++ {
				if err := peer.Call(ctx, "/tick", time.Now(), nil); err != nil {
					return i, err
				}
			}
			return n, nil
		})
	})
	defer s.Close()

	ticks := make(chan time.Time, 8)
	c := connect(t, ctx, s, codec.Default, func(ch *channel.Channel) error {
		return ch.RegisterFunc("/tick", func(tm time.Time) {
			ticks <- tm
		})
	})

	var n int
	err := c.Call(ctx, "/time", 4, &n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("expected 4 ticks, got %d", n)
	}

	var lastTime time.Time
	for i := 0; i < n; i++ {
		curTime := <-ticks
		if curTime.Before(lastTime) {
			t.Errorf("tick %d is earlier than the previous one", i)
		}
		lastTime = curTime
	}
}
