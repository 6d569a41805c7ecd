// Package store is the relational persistence layer: GORM models for the
// device inventory plus the narrow CRUD surface the engine consumes.
package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/faro-networks/faro/pkg/parse"
)

// Dialect selects the CLI grammar a device speaks.
type Dialect string

const (
	// DialectRouterOS is the router-OS-style grammar (/export, /queue simple).
	DialectRouterOS Dialect = "routeros"
	// DialectSwitchOS is the routing-switch grammar (show version, show running-config).
	DialectSwitchOS Dialect = "switchos"
)

// Valid reports whether d is a known dialect.
func (d Dialect) Valid() bool {
	return d == DialectRouterOS || d == DialectSwitchOS
}

// Role classifies a device inside the plant.
type Role string

const (
	RoleNode   Role = "node"
	RoleClient Role = "client"
)

// Device is one managed network element. Hardware facts (chassis, serial,
// firmware) are written by discovery only; the record is never deleted
// automatically.
type Device struct {
	gorm.Model

	IP       string  `gorm:"uniqueIndex;not null" json:"ip"`
	Hostname string  `gorm:"index" json:"hostname"`
	Dialect  Dialect `gorm:"not null" json:"dialect"`
	Role     Role    `gorm:"default:'node'" json:"role"`

	// Hardware facts from the last discovery pass
	Chassis  string `json:"chassis"`
	Serial   string `json:"serial"`
	Firmware string `json:"firmware"`

	SiteID *uint `gorm:"index" json:"site_id,omitempty"`
	Site   *Site `json:"site,omitempty"`

	CredentialID uint        `gorm:"index;not null" json:"credential_id"`
	Credential   *Credential `json:"-"`

	Ports    []PortRecord    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Limiters []LimiterRecord `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Credential is a username/secret pair. Many devices may share one; it is
// owned independently of any device.
type Credential struct {
	gorm.Model

	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Username string `gorm:"not null" json:"username"`
	Secret   string `gorm:"not null" json:"-"`
}

// Site groups devices by physical location.
type Site struct {
	gorm.Model

	Name     string `gorm:"uniqueIndex;not null" json:"name"`
	Location string `json:"location"`
}

// HardwareModel is the catalog of chassis models seen during discovery,
// upserted by chassis name.
type HardwareModel struct {
	gorm.Model

	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// PortRecord is the inventory row for one physical port. PhysicalName is
// unique per device. Status moves between Free and Assigned on resync;
// only the
// service-binding layer may set or clear AssignedToClient.
type PortRecord struct {
	gorm.Model

	DeviceID     uint             `gorm:"index:idx_port_device_name,unique;not null" json:"device_id"`
	PhysicalName string           `gorm:"index:idx_port_device_name,unique;not null" json:"physical_name"`
	Description  string           `json:"description"`
	Status       parse.PortStatus `gorm:"not null" json:"status"`
}

// LimiterRecord is the inventory row for one bandwidth-limiting queue
// rule. The remote rule carries no stable identifier, so rows are
// captured at discovery and mutated only through explicit create/delete
// operations, never by resync.
type LimiterRecord struct {
	gorm.Model

	DeviceID   uint   `gorm:"index;not null" json:"device_id"`
	Name       string `gorm:"index" json:"name"`
	Bandwidth  string `json:"bandwidth"`
	TargetPort string `json:"target_port"`
}

// ConfigSnapshot is one immutable capture of a device's configuration.
// DeviceID is a weak back-reference on purpose: snapshot history survives
// edits to the device record. Rows are appended, never updated.
type ConfigSnapshot struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	DeviceID   uint      `gorm:"index" json:"device_id"`
	CapturedAt int64     `gorm:"index;not null" json:"captured_at"` // milliseconds since epoch
	ExportPath string    `gorm:"not null" json:"export_path"`
	ExportHash string    `gorm:"not null" json:"export_hash"` // sha256 hex of the export byte stream
	BinaryPath string    `json:"binary_path,omitempty"`
	BinaryHash string    `json:"binary_hash,omitempty"`
	DiffPath   string    `json:"diff_path,omitempty"`
}

// User is an operator account for the REST facade.
type User struct {
	gorm.Model

	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	RoleName     string `gorm:"default:'OPERATOR'" json:"role"`
}

// GoldenImage is a firmware image approved for a chassis model.
type GoldenImage struct {
	gorm.Model

	ModelName string `gorm:"index;not null" json:"model_name"`
	Filename  string `gorm:"not null" json:"filename"`
}

// Push-job lifecycle states.
const (
	JobPending   = "pending"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// PushJob schedules a golden-image upload to one device.
type PushJob struct {
	gorm.Model

	DeviceID      uint         `gorm:"index;not null" json:"device_id"`
	Device        *Device      `json:"-"`
	GoldenImageID uint         `gorm:"not null" json:"golden_image_id"`
	GoldenImage   *GoldenImage `json:"-"`
	Status        string       `gorm:"default:'pending';index" json:"status"`
	ScheduledAt   time.Time    `gorm:"index" json:"scheduled_at"`
}
