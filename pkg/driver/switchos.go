package driver

import (
	"context"
	"strings"

	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

// SwitchOS speaks the routing-switch dialect: "show" commands with
// columnar output. The dialect has no binary backup format and no
// per-client bandwidth limiters.
type SwitchOS struct{}

func (SwitchOS) Dialect() store.Dialect { return store.DialectSwitchOS }

func (SwitchOS) run(ctx context.Context, conn Conn, cmd string) (string, error) {
	res, err := conn.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	out := res.Stdout
	lower := strings.ToLower(out)
	if res.ExitStatus != 0 || strings.Contains(lower, "% invalid input") || strings.Contains(lower, "% incomplete command") {
		return "", util.NewCommandError(conn.Host(), cmd, strings.TrimSpace(out+res.Stderr), nil)
	}
	return out, nil
}

func (d SwitchOS) Identity(ctx context.Context, conn Conn) (*Identity, error) {
	ver, err := d.run(ctx, conn, "show version")
	if err != nil {
		return nil, err
	}
	host, err := d.run(ctx, conn, "show running-config | include hostname")
	if err != nil {
		return nil, err
	}

	id := &Identity{
		Hostname: hostnameFromConfig(host),
		Chassis:  parse.Field(ver, "Model"),
		Serial:   parse.Field(ver, "Serial"),
		Firmware: parse.VersionToken(ver),
	}
	if id.Chassis == "" {
		// Some firmware lines label the chassis differently.
		id.Chassis = parse.Field(ver, "Chassis")
	}
	if id.Chassis == "" {
		return nil, util.NewParseError("show version", "no model field in output")
	}
	return id, nil
}

// hostnameFromConfig pulls the name out of a "hostname <name>" line.
func hostnameFromConfig(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.EqualFold(fields[0], "hostname") {
			return strings.Trim(fields[1], `"`)
		}
	}
	return ""
}

func (d SwitchOS) Ports(ctx context.Context, conn Conn) ([]parse.Port, error) {
	out, err := d.run(ctx, conn, "show interfaces status")
	if err != nil {
		return nil, err
	}
	return parse.TablePorts(out)
}

// Limiters reports ErrUnsupported; the switch dialect has no per-client
// queue rules.
func (SwitchOS) Limiters(ctx context.Context, conn Conn) ([]parse.Limiter, error) {
	return nil, util.ErrUnsupported
}

// ExportConfig captures the running configuration straight off stdout;
// the switch needs no intermediate file.
func (d SwitchOS) ExportConfig(ctx context.Context, conn Conn, stamp int64) ([]byte, error) {
	out, err := d.run(ctx, conn, "show running-config")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out) == "" {
		return nil, util.NewParseError("show running-config", "device produced empty configuration")
	}
	return []byte(out), nil
}

func (SwitchOS) ExportBinary(ctx context.Context, conn Conn, stamp int64) ([]byte, bool, error) {
	return nil, false, nil
}

func (SwitchOS) AddLimiter(ctx context.Context, conn Conn, spec LimiterSpec) error {
	return util.ErrUnsupported
}

func (SwitchOS) RemoveLimiter(ctx context.Context, conn Conn, name string) error {
	return util.ErrUnsupported
}

// Diagnose reports ErrUnsupported; the diagnostic actions are router
// vendor commands with no switch equivalent wired up.
func (SwitchOS) Diagnose(ctx context.Context, conn Conn, action string) (string, error) {
	return "", util.ErrUnsupported
}
