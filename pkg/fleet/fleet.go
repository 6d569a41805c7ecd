// Package fleet is the orchestration layer: it owns the order of
// operations for device onboarding, backup capture, inventory sync, and
// limiter management, and serializes everything per device through a
// Locker. Policy lives here; vendor commands live in the drivers and
// persistence lives in the store.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/faro-networks/faro/pkg/archive"
	"github.com/faro-networks/faro/pkg/driver"
	"github.com/faro-networks/faro/pkg/inventory"
	"github.com/faro-networks/faro/pkg/lock"
	"github.com/faro-networks/faro/pkg/session"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

// Dialer opens an authenticated connection to a device. The default
// dials SSH; tests substitute a fake.
type Dialer func(ctx context.Context, target session.Target, cred session.Credential) (driver.Conn, func() error, error)

// Engine ties the store, archive, drivers, and locker together.
type Engine struct {
	Store   *store.Store
	Archive *archive.Archive
	Locker  lock.Locker

	// ImageDir holds golden image files referenced by push jobs.
	ImageDir string

	SessionOptions session.Options

	Dial Dialer
}

// New builds an engine with the default SSH dialer.
func New(s *store.Store, a *archive.Archive, l lock.Locker, imageDir string, opts session.Options) *Engine {
	e := &Engine{Store: s, Archive: a, Locker: l, ImageDir: imageDir, SessionOptions: opts}
	e.Dial = func(ctx context.Context, target session.Target, cred session.Credential) (driver.Conn, func() error, error) {
		sess, err := session.Open(ctx, target, cred, e.SessionOptions)
		if err != nil {
			return nil, nil, err
		}
		return sess, sess.Close, nil
	}
	return e
}

// withDevice runs fn holding the device lock with an open connection.
// Everything that talks to a device funnels through here, so two
// operations can never interleave their commands on one box.
func (e *Engine) withDevice(ctx context.Context, dev *store.Device, fn func(drv driver.Driver, conn driver.Conn) error) error {
	drv, err := driver.ForDialect(dev.Dialect)
	if err != nil {
		return err
	}
	release, err := e.Locker.Acquire(ctx, dev.IP)
	if err != nil {
		return err
	}
	defer release()

	if dev.Credential == nil {
		return util.NewNotFoundError("credential", fmt.Sprintf("%d", dev.CredentialID))
	}
	conn, closeFn, err := e.Dial(ctx,
		session.Target{Host: dev.IP},
		session.Credential{Username: dev.Credential.Username, Secret: dev.Credential.Secret})
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(drv, conn)
}

// AddDeviceRequest is the operator input for onboarding one device.
type AddDeviceRequest struct {
	IP           string
	Dialect      store.Dialect
	Role         store.Role
	CredentialID uint
	SiteID       *uint
}

// AddDevice onboards a device: validate, reach the box, and persist the
// record only once identity discovery succeeded. An unreachable host or
// a failed identity pass leaves no row behind; the seeded inventory and
// the first configuration capture are best effort once the row exists.
func (e *Engine) AddDevice(ctx context.Context, req AddDeviceRequest) (*store.Device, error) {
	if req.IP == "" {
		return nil, util.NewParseError("device", "ip is required")
	}
	if !req.Dialect.Valid() {
		return nil, util.NewParseError("device", fmt.Sprintf("unknown dialect %q", req.Dialect))
	}

	if _, err := e.Store.DeviceByIP(req.IP); err == nil {
		return nil, util.NewDuplicateError("device", req.IP)
	} else if !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}
	cred, err := e.Store.CredentialByID(req.CredentialID)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = store.RoleNode
	}
	dev := &store.Device{
		IP:           req.IP,
		Dialect:      req.Dialect,
		Role:         role,
		CredentialID: cred.ID,
		SiteID:       req.SiteID,
		Credential:   cred,
	}

	err = e.withDevice(ctx, dev, func(drv driver.Driver, conn driver.Conn) error {
		id, err := drv.Identity(ctx, conn)
		if err != nil {
			return err
		}
		dev.Hostname = id.Hostname
		dev.Chassis = id.Chassis
		dev.Serial = id.Serial
		dev.Firmware = id.Firmware
		if err := e.Store.CreateDevice(dev); err != nil {
			return err
		}
		if _, err := e.Store.UpsertModel(id.Chassis); err != nil {
			util.WithDevice(dev.IP).Warnf("Could not record hardware model: %v", err)
		}

		recon := inventory.New(e.Store)
		if ports, err := drv.Ports(ctx, conn); err != nil {
			util.WithDevice(dev.IP).Warnf("Port discovery failed: %v", err)
		} else if report, err := recon.SyncPorts(dev.ID, ports); err != nil {
			util.WithDevice(dev.IP).Warnf("Port inventory write failed: %v", err)
		} else {
			util.WithDevice(dev.IP).Infof("Discovered %d ports", report.Added)
		}

		if limiters, err := drv.Limiters(ctx, conn); err != nil {
			if !errors.Is(err, util.ErrUnsupported) {
				util.WithDevice(dev.IP).Warnf("Limiter discovery failed: %v", err)
			}
		} else if n, err := recon.CaptureLimiters(dev.ID, limiters); err != nil {
			util.WithDevice(dev.IP).Warnf("Limiter inventory write failed: %v", err)
		} else if n > 0 {
			util.WithDevice(dev.IP).Infof("Captured %d limiter rules", n)
		}

		if _, err := e.capture(ctx, dev, drv, conn); err != nil {
			util.WithDevice(dev.IP).Warnf("Initial configuration capture failed: %v", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// RunBackup captures the device configuration now and records the
// snapshot. Unlike onboarding, persistence failures here are fatal: a
// capture that cannot be recorded did not happen.
func (e *Engine) RunBackup(ctx context.Context, deviceID uint) (*store.ConfigSnapshot, error) {
	dev, err := e.Store.DeviceByID(deviceID)
	if err != nil {
		return nil, err
	}
	var snap *store.ConfigSnapshot
	err = e.withDevice(ctx, dev, func(drv driver.Driver, conn driver.Conn) error {
		snap, err = e.capture(ctx, dev, drv, conn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// capture runs one export pass over an already-open connection and
// persists the snapshot row. All artifacts land in the archive before
// the row is written; a row never points at files that do not exist.
func (e *Engine) capture(ctx context.Context, dev *store.Device, drv driver.Driver, conn driver.Conn) (*store.ConfigSnapshot, error) {
	stamp := time.Now().UnixMilli()

	export, err := drv.ExportConfig(ctx, conn, stamp)
	if err != nil {
		return nil, err
	}
	binary, supported, err := drv.ExportBinary(ctx, conn, stamp)
	if err != nil {
		return nil, err
	}
	if !supported {
		binary = nil
	}

	art, err := e.Archive.Do(dev.ID, export, binary)
	if err != nil {
		return nil, err
	}

	snap := &store.ConfigSnapshot{
		DeviceID:   dev.ID,
		CapturedAt: art.Stamp,
		ExportPath: art.ExportPath,
		ExportHash: art.ExportHash,
		BinaryPath: art.BinaryPath,
		BinaryHash: art.BinaryHash,
		DiffPath:   art.DiffPath,
	}
	if err := e.Store.CreateSnapshot(snap); err != nil {
		return nil, err
	}
	util.WithDevice(dev.IP).WithField("hash", art.ExportHash[:12]).Info("Configuration captured")
	return snap, nil
}

// SyncPorts refreshes the port inventory from the device.
func (e *Engine) SyncPorts(ctx context.Context, deviceID uint) (*inventory.PortSyncReport, error) {
	dev, err := e.Store.DeviceByID(deviceID)
	if err != nil {
		return nil, err
	}
	var report *inventory.PortSyncReport
	err = e.withDevice(ctx, dev, func(drv driver.Driver, conn driver.Conn) error {
		ports, err := drv.Ports(ctx, conn)
		if err != nil {
			return err
		}
		report, err = inventory.New(e.Store).SyncPorts(dev.ID, ports)
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// CreateLimiter provisions a bandwidth limiter on the device and records
// it. The remote rule is created first; a store failure after that is
// fatal so the operator sees the mismatch instead of a silently
// untracked rule.
func (e *Engine) CreateLimiter(ctx context.Context, deviceID uint, spec driver.LimiterSpec) (*store.LimiterRecord, error) {
	if spec.Name == "" || spec.Bandwidth == "" || spec.Target == "" {
		return nil, util.NewParseError("limiter", "name, bandwidth, and target are required")
	}
	dev, err := e.Store.DeviceByID(deviceID)
	if err != nil {
		return nil, err
	}
	existing, err := e.Store.LimitersByDevice(dev.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range existing {
		if util.FoldEqual(l.Name, spec.Name) {
			return nil, util.NewDuplicateError("limiter", spec.Name)
		}
	}

	err = e.withDevice(ctx, dev, func(drv driver.Driver, conn driver.Conn) error {
		return drv.AddLimiter(ctx, conn, spec)
	})
	if err != nil {
		return nil, err
	}

	row := store.LimiterRecord{
		DeviceID:   dev.ID,
		Name:       spec.Name,
		Bandwidth:  spec.Bandwidth,
		TargetPort: spec.Target,
	}
	if err := e.Store.CreateLimiters([]store.LimiterRecord{row}); err != nil {
		return nil, fmt.Errorf("limiter created on device but not recorded: %w", err)
	}
	rows, err := e.Store.LimitersByDevice(dev.ID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Name == spec.Name {
			return &rows[i], nil
		}
	}
	return &row, nil
}

// DeleteLimiter removes a limiter from the device and then its record.
func (e *Engine) DeleteLimiter(ctx context.Context, limiterID uint) error {
	row, err := e.Store.LimiterByID(limiterID)
	if err != nil {
		return err
	}
	dev, err := e.Store.DeviceByID(row.DeviceID)
	if err != nil {
		return err
	}
	err = e.withDevice(ctx, dev, func(drv driver.Driver, conn driver.Conn) error {
		return drv.RemoveLimiter(ctx, conn, row.Name)
	})
	if err != nil {
		return err
	}
	return e.Store.DeleteLimiter(limiterID)
}

// Diagnose runs one on-demand diagnostic action against the device and
// returns the raw command output.
func (e *Engine) Diagnose(ctx context.Context, deviceID uint, action string) (string, error) {
	dev, err := e.Store.DeviceByID(deviceID)
	if err != nil {
		return "", err
	}
	var out string
	err = e.withDevice(ctx, dev, func(drv driver.Driver, conn driver.Conn) error {
		out, err = drv.Diagnose(ctx, conn, action)
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// PushImage uploads a golden firmware image to the device's flash. The
// upload does not install anything; installation stays a manual step.
func (e *Engine) PushImage(ctx context.Context, deviceID uint, img *store.GoldenImage) error {
	dev, err := e.Store.DeviceByID(deviceID)
	if err != nil {
		return err
	}
	local := filepath.Join(e.ImageDir, img.Filename)
	return e.withDevice(ctx, dev, func(drv driver.Driver, conn driver.Conn) error {
		return conn.Upload(ctx, local, img.Filename)
	})
}
