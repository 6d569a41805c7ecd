package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/faro-networks/faro/pkg/util"
)

func TestTargetAddr(t *testing.T) {
	tests := []struct {
		target Target
		want   string
	}{
		{Target{Host: "10.0.0.1"}, "10.0.0.1:22"},
		{Target{Host: "10.0.0.1", Port: 2222}, "10.0.0.1:2222"},
	}
	for _, tt := range tests {
		if got := tt.target.addr(); got != tt.want {
			t.Errorf("addr() = %q, want %q", got, tt.want)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %v", o.ConnectTimeout)
	}
	if o.CommandTimeout != 30*time.Second {
		t.Errorf("CommandTimeout = %v", o.CommandTimeout)
	}
	if o.TransferTimeout != 60*time.Second {
		t.Errorf("TransferTimeout = %v", o.TransferTimeout)
	}

	custom := Options{ConnectTimeout: time.Second}.withDefaults()
	if custom.ConnectTimeout != time.Second {
		t.Errorf("explicit ConnectTimeout overridden: %v", custom.ConnectTimeout)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			"auth rejected",
			errors.New("ssh: handshake failed: ssh: unable to authenticate, attempted methods [none password]"),
			util.ErrAuthFailed,
		},
		{
			"dial timeout",
			fmt.Errorf("dial tcp 10.0.0.9:22: %w", timeoutErr{}),
			util.ErrTimeout,
		},
		{
			"connection refused",
			errors.New("dial tcp 10.0.0.9:22: connect: connection refused"),
			util.ErrUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDialError("10.0.0.9", tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyDialError = %v, want sentinel %v", got, tt.want)
			}
		})
	}
}

func TestOpenRespectsCanceledContext(t *testing.T) {
	// A listener that accepts and then stalls: the SSH handshake cannot
	// progress, so Open must give up when the context is canceled.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(5 * time.Second)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	addr := ln.Addr().(*net.TCPAddr)
	_, err = Open(ctx, Target{Host: addr.IP.String(), Port: addr.Port},
		Credential{Username: "admin", Secret: "admin"},
		Options{ConnectTimeout: 3 * time.Second})
	if err == nil {
		t.Fatal("expected error from stalled handshake")
	}
	if !errors.Is(err, util.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
