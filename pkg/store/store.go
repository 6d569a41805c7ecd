package store

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/util"
)

// Store wraps the database handle. All engine persistence goes through
// its methods; nothing else touches inventory rows directly.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	if err := db.AutoMigrate(
		&Device{}, &Credential{}, &Site{}, &HardwareModel{},
		&PortRecord{}, &LimiterRecord{}, &ConfigSnapshot{},
		&User{}, &GoldenImage{}, &PushJob{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// persistErr tags a write failure with the persistence sentinel.
func persistErr(what string, err error) error {
	return fmt.Errorf("%s: %v: %w", what, err, util.ErrPersistence)
}

// ── Devices ──────────────────────────────────────────────────────────────

// CreateDevice inserts a new device row.
func (s *Store) CreateDevice(d *Device) error {
	if err := s.db.Create(d).Error; err != nil {
		return persistErr("creating device", err)
	}
	return nil
}

// DeviceByID loads a device with its credential and site.
func (s *Store) DeviceByID(id uint) (*Device, error) {
	var d Device
	err := s.db.Preload("Credential").Preload("Site").First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("device", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeviceByIP returns the device registered at ip, or NotFoundError.
func (s *Store) DeviceByIP(ip string) (*Device, error) {
	var d Device
	err := s.db.Where("ip = ?", ip).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("device", ip)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDevices returns all devices with their sites, ordered by ip.
func (s *Store) ListDevices() ([]Device, error) {
	var devices []Device
	if err := s.db.Preload("Site").Order("ip").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// UpdateDevice persists mutable device fields.
func (s *Store) UpdateDevice(d *Device) error {
	if err := s.db.Save(d).Error; err != nil {
		return persistErr("updating device", err)
	}
	return nil
}

// DeleteDevice removes a device and its owned inventory rows. Snapshots
// are left in place: snapshot history outlives the device record.
func (s *Store) DeleteDevice(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&PortRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("device_id = ?", id).Delete(&LimiterRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("device_id = ?", id).Delete(&PushJob{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Device{}, id).Error
	})
	if err != nil {
		return persistErr("deleting device", err)
	}
	return nil
}

// ── Credentials / Sites / Models ─────────────────────────────────────────

// CreateCredential inserts a credential.
func (s *Store) CreateCredential(c *Credential) error {
	if err := s.db.Create(c).Error; err != nil {
		return persistErr("creating credential", err)
	}
	return nil
}

// CredentialByID loads one credential.
func (s *Store) CredentialByID(id uint) (*Credential, error) {
	var c Credential
	err := s.db.First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("credential", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCredentials returns all credentials.
func (s *Store) ListCredentials() ([]Credential, error) {
	var creds []Credential
	if err := s.db.Order("name").Find(&creds).Error; err != nil {
		return nil, err
	}
	return creds, nil
}

// CreateSite inserts a site.
func (s *Store) CreateSite(site *Site) error {
	if err := s.db.Create(site).Error; err != nil {
		return persistErr("creating site", err)
	}
	return nil
}

// ListSites returns all sites.
func (s *Store) ListSites() ([]Site, error) {
	var sites []Site
	if err := s.db.Order("name").Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

// UpsertModel registers a chassis model name seen during discovery.
func (s *Store) UpsertModel(name string) (*HardwareModel, error) {
	if name == "" {
		return nil, nil
	}
	var m HardwareModel
	err := s.db.Where(HardwareModel{Name: name}).FirstOrCreate(&m).Error
	if err != nil {
		return nil, persistErr("upserting hardware model", err)
	}
	return &m, nil
}

// ── Ports ────────────────────────────────────────────────────────────────

// PortsByDevice returns a device's port rows ordered by physical name.
func (s *Store) PortsByDevice(deviceID uint) ([]PortRecord, error) {
	var ports []PortRecord
	err := s.db.Where("device_id = ?", deviceID).Order("physical_name").Find(&ports).Error
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// CreatePorts bulk-inserts port rows.
func (s *Store) CreatePorts(ports []PortRecord) error {
	if len(ports) == 0 {
		return nil
	}
	if err := s.db.Create(&ports).Error; err != nil {
		return persistErr("creating port records", err)
	}
	return nil
}

// UpdatePort persists description/status changes for one port row.
func (s *Store) UpdatePort(p *PortRecord) error {
	if err := s.db.Save(p).Error; err != nil {
		return persistErr("updating port record", err)
	}
	return nil
}

// PortByID loads one port row.
func (s *Store) PortByID(id uint) (*PortRecord, error) {
	var p PortRecord
	err := s.db.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("port", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetPortStatus writes one port's status. Used by the service-binding
// hooks; routine resync goes through the reconciler instead.
func (s *Store) SetPortStatus(id uint, status parse.PortStatus) error {
	if err := s.db.Model(&PortRecord{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return persistErr("updating port status", err)
	}
	return nil
}

// ── Limiters ─────────────────────────────────────────────────────────────

// LimitersByDevice returns a device's limiter rows ordered by name.
func (s *Store) LimitersByDevice(deviceID uint) ([]LimiterRecord, error) {
	var limiters []LimiterRecord
	err := s.db.Where("device_id = ?", deviceID).Order("name").Find(&limiters).Error
	if err != nil {
		return nil, err
	}
	return limiters, nil
}

// CreateLimiters bulk-inserts limiter rows.
func (s *Store) CreateLimiters(limiters []LimiterRecord) error {
	if len(limiters) == 0 {
		return nil
	}
	if err := s.db.Create(&limiters).Error; err != nil {
		return persistErr("creating limiter records", err)
	}
	return nil
}

// LimiterByID loads one limiter row.
func (s *Store) LimiterByID(id uint) (*LimiterRecord, error) {
	var l LimiterRecord
	err := s.db.First(&l, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("limiter", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLimiter removes one limiter row.
func (s *Store) DeleteLimiter(id uint) error {
	if err := s.db.Delete(&LimiterRecord{}, id).Error; err != nil {
		return persistErr("deleting limiter record", err)
	}
	return nil
}

// ── Snapshots ────────────────────────────────────────────────────────────

// CreateSnapshot appends a snapshot record. Snapshot rows are immutable;
// there is deliberately no update or delete method.
func (s *Store) CreateSnapshot(snap *ConfigSnapshot) error {
	if err := s.db.Create(snap).Error; err != nil {
		return persistErr("creating snapshot record", err)
	}
	return nil
}

// SnapshotsByDevice returns a device's snapshots in capture order.
func (s *Store) SnapshotsByDevice(deviceID uint) ([]ConfigSnapshot, error) {
	var snaps []ConfigSnapshot
	err := s.db.Where("device_id = ?", deviceID).Order("captured_at").Find(&snaps).Error
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// SnapshotByID loads one snapshot record.
func (s *Store) SnapshotByID(id uint) (*ConfigSnapshot, error) {
	var snap ConfigSnapshot
	err := s.db.First(&snap, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("snapshot", strconv.FormatUint(uint64(id), 10))
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ── Users ────────────────────────────────────────────────────────────────

// UpsertUser creates the user or refreshes its password hash and role.
func (s *Store) UpsertUser(u *User) error {
	var existing User
	err := s.db.Where("username = ?", u.Username).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.Create(u).Error; err != nil {
			return persistErr("creating user", err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	existing.PasswordHash = u.PasswordHash
	existing.RoleName = u.RoleName
	if err := s.db.Save(&existing).Error; err != nil {
		return persistErr("updating user", err)
	}
	return nil
}

// UserByUsername loads one user.
func (s *Store) UserByUsername(username string) (*User, error) {
	var u User
	err := s.db.Where("username = ?", username).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("user", username)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ── Golden images / push jobs ────────────────────────────────────────────

// CreateImage registers a golden firmware image.
func (s *Store) CreateImage(img *GoldenImage) error {
	if err := s.db.Create(img).Error; err != nil {
		return persistErr("creating golden image", err)
	}
	return nil
}

// ListImages returns all golden images.
func (s *Store) ListImages() ([]GoldenImage, error) {
	var imgs []GoldenImage
	if err := s.db.Order("model_name").Find(&imgs).Error; err != nil {
		return nil, err
	}
	return imgs, nil
}

// CreateJob schedules a push job.
func (s *Store) CreateJob(job *PushJob) error {
	if err := s.db.Create(job).Error; err != nil {
		return persistErr("creating push job", err)
	}
	return nil
}

// DueJobs returns pending jobs whose scheduled time has passed, with
// device, credential, and image preloaded.
func (s *Store) DueJobs(now time.Time) ([]PushJob, error) {
	var jobs []PushJob
	err := s.db.
		Where("status = ? AND scheduled_at <= ?", JobPending, now).
		Preload("Device").Preload("Device.Credential").Preload("GoldenImage").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdateJobStatus moves a job to completed or failed.
func (s *Store) UpdateJobStatus(id uint, status string) error {
	if err := s.db.Model(&PushJob{}).Where("id = ?", id).Update("status", status).Error; err != nil {
		return persistErr("updating push job", err)
	}
	return nil
}
