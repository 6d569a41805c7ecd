// Package seed loads bootstrap data from a YAML file: operator accounts,
// sites, and device credentials. Seeding is idempotent; a site or
// credential that already exists is skipped, users get their password
// hash refreshed so the file can rotate secrets.
package seed

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

// File is the on-disk seed format.
type File struct {
	Users       []User             `yaml:"users"`
	Sites       []Site             `yaml:"sites"`
	Credentials []DeviceCredential `yaml:"credentials"`
}

// User is one operator account. Password is hashed before it touches the
// store; the plaintext never leaves this package.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Site is one physical location.
type Site struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

// DeviceCredential is one SSH username/secret pair.
type DeviceCredential struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Secret   string `yaml:"secret"`
}

// Report counts what a seeding pass wrote.
type Report struct {
	Users       int
	Sites       int
	Credentials int
}

// Apply reads path and writes its contents into the store.
func Apply(s *store.Store, path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, util.NewParseError("seed", err.Error())
	}
	return apply(s, &f)
}

func apply(s *store.Store, f *File) (*Report, error) {
	report := &Report{}

	for _, u := range f.Users {
		if u.Username == "" || u.Password == "" {
			return report, util.NewParseError("seed", "user entries need username and password")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return report, fmt.Errorf("hashing password for %s: %w", u.Username, err)
		}
		role := u.Role
		if role == "" {
			role = "OPERATOR"
		}
		err = s.UpsertUser(&store.User{
			Username:     u.Username,
			PasswordHash: string(hash),
			RoleName:     role,
		})
		if err != nil {
			return report, err
		}
		report.Users++
	}

	for _, site := range f.Sites {
		if site.Name == "" {
			return report, util.NewParseError("seed", "site entries need a name")
		}
		err := s.CreateSite(&store.Site{Name: site.Name, Location: site.Location})
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return report, err
		}
		report.Sites++
	}

	for _, c := range f.Credentials {
		if c.Name == "" || c.Username == "" || c.Secret == "" {
			return report, util.NewParseError("seed", "credential entries need name, username, and secret")
		}
		err := s.CreateCredential(&store.Credential{Name: c.Name, Username: c.Username, Secret: c.Secret})
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return report, err
		}
		report.Credentials++
	}

	return report, nil
}

// isUniqueViolation matches the sqlite unique-constraint message; a row
// that already exists is not an error for seeding.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
