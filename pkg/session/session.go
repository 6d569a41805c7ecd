// Package session opens authenticated command-execution sessions to
// managed devices. A Session runs vendor CLI commands and moves files over
// SFTP; every blocking step carries an explicit deadline and Close is
// idempotent, so a session can never outlive the operation that opened it.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/faro-networks/faro/pkg/util"
)

// Target identifies the remote endpoint. Port 0 means the SSH default.
type Target struct {
	Host string
	Port int
}

func (t Target) addr() string {
	port := t.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", t.Host, port)
}

// Credential is a username/secret pair for password authentication.
type Credential struct {
	Username string
	Secret   string
}

// Options bounds every blocking step of a session. Zero values fall back
// to the defaults below.
type Options struct {
	ConnectTimeout  time.Duration
	CommandTimeout  time.Duration
	TransferTimeout time.Duration
}

const (
	defaultConnectTimeout  = 10 * time.Second
	defaultCommandTimeout  = 30 * time.Second
	defaultTransferTimeout = 60 * time.Second
)

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = defaultCommandTimeout
	}
	if o.TransferTimeout <= 0 {
		o.TransferTimeout = defaultTransferTimeout
	}
	return o
}

// Result is the outcome of one remote command.
type Result struct {
	Stdout     string
	Stderr     string
	ExitStatus int
}

// Session is an authenticated connection to one device. Not safe for
// concurrent use; same-device operations are serialized above this layer.
type Session struct {
	client *ssh.Client
	host   string
	opts   Options

	closeOnce sync.Once
	closeErr  error
}

// Open dials the target and authenticates within opts.ConnectTimeout.
// Unreachable hosts map to ErrUnreachable (ErrTimeout when the deadline
// expired), rejected credentials to ErrAuthFailed.
func Open(ctx context.Context, target Target, cred Credential, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	cfg := &ssh.ClientConfig{
		User:            cred.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(cred.Secret)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // devices are on the management network; no host-key distribution
		Timeout:         opts.ConnectTimeout,
	}

	type dialed struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialed, 1)
	go func() {
		client, err := ssh.Dial("tcp", target.addr(), cfg)
		ch <- dialed{client, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if d := <-ch; d.client != nil {
				d.client.Close()
			}
		}()
		return nil, fmt.Errorf("connecting to %s: %w", target.Host, util.ErrTimeout)
	case d := <-ch:
		if d.err != nil {
			return nil, classifyDialError(target.Host, d.err)
		}
		return &Session{client: d.client, host: target.Host, opts: opts}, nil
	}
}

// classifyDialError maps an ssh.Dial failure onto the error taxonomy.
func classifyDialError(host string, err error) error {
	if strings.Contains(err.Error(), "unable to authenticate") {
		return fmt.Errorf("authenticating to %s: %w", host, util.ErrAuthFailed)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("connecting to %s: %w", host, util.ErrTimeout)
	}
	return fmt.Errorf("connecting to %s: %v: %w", host, err, util.ErrUnreachable)
}

// Host returns the remote host this session is attached to.
func (s *Session) Host() string { return s.host }

// Run executes one command and returns its output and exit status. A
// non-zero exit status is reported in the Result, not as an error; only a
// broken channel or an expired deadline is an error.
func (s *Session) Run(ctx context.Context, cmd string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	defer cancel()

	sess, err := s.client.NewSession()
	if err != nil {
		return Result{}, util.NewCommandError(s.host, cmd, "", fmt.Errorf("%v: %w", err, util.ErrCommandFailed))
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	if err := sess.Start(cmd); err != nil {
		return Result{}, util.NewCommandError(s.host, cmd, "", fmt.Errorf("%v: %w", err, util.ErrCommandFailed))
	}

	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()

	select {
	case <-ctx.Done():
		sess.Close() // unblocks Wait
		return Result{}, util.NewCommandError(s.host, cmd, "", util.ErrTimeout)
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitStatus: exitErr.ExitStatus()}, nil
			}
			return Result{}, util.NewCommandError(s.host, cmd, stderr.String(), fmt.Errorf("%v: %w", err, util.ErrCommandFailed))
		}
		return Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
	}
}

// Close shuts the connection down. Safe to call more than once; every
// call after the first returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

// With opens a session, hands it to fn, and guarantees Close on every
// exit path including panics.
func With(ctx context.Context, target Target, cred Credential, opts Options, fn func(*Session) error) error {
	s, err := Open(ctx, target, cred, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
