package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

// RouterOS speaks the router dialect: slash-path commands, /export for
// text configuration, /system backup for the binary snapshot, and
// /queue simple for bandwidth limiters.
type RouterOS struct{}

func (RouterOS) Dialect() store.Dialect { return store.DialectRouterOS }

// run issues one command and folds a vendor-reported failure into the
// error. The router reports errors on stdout with a "failure:" or "bad
// command" prefix and still exits zero, so exit status alone is not
// enough.
func (RouterOS) run(ctx context.Context, conn Conn, cmd string) (string, error) {
	res, err := conn.Run(ctx, cmd)
	if err != nil {
		return "", err
	}
	out := res.Stdout
	lower := strings.ToLower(out)
	if res.ExitStatus != 0 || strings.Contains(lower, "failure:") || strings.Contains(lower, "bad command name") || strings.Contains(lower, "syntax error") {
		return "", util.NewCommandError(conn.Host(), cmd, strings.TrimSpace(out+res.Stderr), nil)
	}
	return out, nil
}

func (d RouterOS) Identity(ctx context.Context, conn Conn) (*Identity, error) {
	board, err := d.run(ctx, conn, "/system routerboard print")
	if err != nil {
		return nil, err
	}
	ident, err := d.run(ctx, conn, "/system identity print")
	if err != nil {
		return nil, err
	}

	id := &Identity{
		Hostname: parse.Field(ident, "name"),
		Chassis:  parse.Field(board, "model"),
		Serial:   parse.Field(board, "serial-number"),
		Firmware: parse.Field(board, "upgrade-firmware"),
	}
	if id.Chassis == "" {
		return nil, util.NewParseError("routerboard", "no model field in output")
	}
	return id, nil
}

// portScript prints one "default-name - name" line per ethernet
// interface. A renamed interface is one an operator has assigned; one
// still carrying its factory name is free.
const portScript = `:foreach i in=[/interface ethernet find] do={:put ([/interface ethernet get $i default-name] . " - " . [/interface ethernet get $i name])}`

func (d RouterOS) Ports(ctx context.Context, conn Conn) ([]parse.Port, error) {
	out, err := d.run(ctx, conn, portScript)
	if err != nil {
		return nil, err
	}
	return parse.PairedPorts(out)
}

func (d RouterOS) Limiters(ctx context.Context, conn Conn) ([]parse.Limiter, error) {
	out, err := d.run(ctx, conn, "/queue simple export")
	if err != nil {
		return nil, err
	}
	return parse.LimiterBlocks(out)
}

// ExportConfig asks the device to write its configuration to a file,
// pulls the file over SFTP, and removes the remote copy. The stamp keys
// the remote filename so overlapping captures never clobber each other.
func (d RouterOS) ExportConfig(ctx context.Context, conn Conn, stamp int64) ([]byte, error) {
	remote := fmt.Sprintf("faro-export-%d", stamp)
	if _, err := d.run(ctx, conn, fmt.Sprintf("/export file=%s", remote)); err != nil {
		return nil, err
	}
	data, err := d.fetchAndRemove(ctx, conn, remote+".rsc")
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, util.NewParseError("export", "device produced an empty export file")
	}
	return data, nil
}

// ExportBinary captures the vendor binary backup the same way.
func (d RouterOS) ExportBinary(ctx context.Context, conn Conn, stamp int64) ([]byte, bool, error) {
	remote := fmt.Sprintf("faro-backup-%d", stamp)
	if _, err := d.run(ctx, conn, fmt.Sprintf("/system backup save name=%s", remote)); err != nil {
		return nil, true, err
	}
	data, err := d.fetchAndRemove(ctx, conn, remote+".backup")
	if err != nil {
		return nil, true, err
	}
	return data, true, nil
}

// fetchAndRemove downloads a remote file into memory and then deletes it
// from the device. The remote delete is best effort; a leftover file
// wastes flash but does not invalidate the capture.
func (d RouterOS) fetchAndRemove(ctx context.Context, conn Conn, remote string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "faro-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("staging download: %w", err)
	}
	local := tmp.Name()
	tmp.Close()
	defer os.Remove(local)

	if err := conn.Download(ctx, remote, local); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("reading download %s: %w", filepath.Base(local), err)
	}

	if _, err := d.run(ctx, conn, fmt.Sprintf("/file remove \"%s\"", remote)); err != nil {
		util.WithDevice(conn.Host()).Warnf("Could not remove remote artifact %s: %v", remote, err)
	}
	return data, nil
}

func (d RouterOS) AddLimiter(ctx context.Context, conn Conn, spec LimiterSpec) error {
	cmd := fmt.Sprintf(
		"/queue simple add max-limit=%s/%s name=\"%s\" queue=hotspot-default/hotspot-default target=%s",
		spec.Bandwidth, spec.Bandwidth, spec.Name, spec.Target,
	)
	_, err := d.run(ctx, conn, cmd)
	return err
}

func (d RouterOS) RemoveLimiter(ctx context.Context, conn Conn, name string) error {
	_, err := d.run(ctx, conn, fmt.Sprintf("/queue simple remove [find name=\"%s\"]", name))
	return err
}

// routerDiagnostics maps each operator-requested check to the vendor
// command that answers it.
var routerDiagnostics = map[string]string{
	"port":          "/interface ethernet print",
	"communication": "ping 8.8.8.8 count=4",
	"cpu":           "/system resource print",
	"memory":        "/system resource print",
	"logs":          "/log print without-paging",
}

func (d RouterOS) Diagnose(ctx context.Context, conn Conn, action string) (string, error) {
	cmd, ok := routerDiagnostics[action]
	if !ok {
		return "", util.NewParseError("diagnostic", fmt.Sprintf("unknown action %q", action))
	}
	return d.run(ctx, conn, cmd)
}
