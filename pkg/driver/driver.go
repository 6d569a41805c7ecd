// Package driver hides the vendor CLI behind one interface. Each dialect
// knows which commands to issue and which parser to feed the output to;
// everything above this package deals in Identity, Port, and Limiter
// values and never sees a command string.
package driver

import (
	"context"

	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/session"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

// Conn is the slice of a device session a driver needs. *session.Session
// satisfies it.
type Conn interface {
	Run(ctx context.Context, cmd string) (session.Result, error)
	Upload(ctx context.Context, localPath, remoteName string) error
	Download(ctx context.Context, remoteName, localPath string) error
	Host() string
}

// Identity is the hardware and naming facts discovery collects.
type Identity struct {
	Hostname string
	Chassis  string
	Serial   string
	Firmware string
}

// LimiterSpec describes a bandwidth limiter to create on a device.
type LimiterSpec struct {
	Name      string
	Bandwidth string // vendor rate token, e.g. "10M"
	Target    string // port or address the limit applies to
}

// Driver executes dialect-specific operations over an open connection.
type Driver interface {
	Dialect() store.Dialect

	Identity(ctx context.Context, conn Conn) (*Identity, error)
	Ports(ctx context.Context, conn Conn) ([]parse.Port, error)
	Limiters(ctx context.Context, conn Conn) ([]parse.Limiter, error)

	// ExportConfig captures the device's full text configuration. stamp
	// keys any transient remote artifacts so concurrent captures cannot
	// collide.
	ExportConfig(ctx context.Context, conn Conn, stamp int64) ([]byte, error)

	// ExportBinary captures the vendor binary backup. supported is false
	// when the dialect has no binary format; err stays nil in that case.
	ExportBinary(ctx context.Context, conn Conn, stamp int64) (data []byte, supported bool, err error)

	AddLimiter(ctx context.Context, conn Conn, spec LimiterSpec) error
	RemoveLimiter(ctx context.Context, conn Conn, name string) error

	// Diagnose runs one on-demand diagnostic check (port, communication,
	// cpu, memory, logs) and returns the raw command output for the
	// operator to read.
	Diagnose(ctx context.Context, conn Conn, action string) (string, error)
}

// ForDialect returns the driver for a dialect.
func ForDialect(d store.Dialect) (Driver, error) {
	switch d {
	case store.DialectRouterOS:
		return &RouterOS{}, nil
	case store.DialectSwitchOS:
		return &SwitchOS{}, nil
	default:
		return nil, util.NewNotFoundError("dialect", string(d))
	}
}
