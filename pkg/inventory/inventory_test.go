package inventory

import (
	"errors"
	"testing"

	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

func newFixture(t *testing.T) (*Reconciler, *store.Store, *store.Device) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	cred := &store.Credential{Name: "default", Username: "admin", Secret: "secret"}
	if err := s.CreateCredential(cred); err != nil {
		t.Fatalf("creating credential: %v", err)
	}
	dev := &store.Device{IP: "10.0.0.1", Dialect: store.DialectRouterOS, CredentialID: cred.ID}
	if err := s.CreateDevice(dev); err != nil {
		t.Fatalf("creating device: %v", err)
	}
	return New(s), s, dev
}

func portByName(t *testing.T, s *store.Store, deviceID uint, name string) *store.PortRecord {
	t.Helper()
	ports, err := s.PortsByDevice(deviceID)
	if err != nil {
		t.Fatalf("PortsByDevice: %v", err)
	}
	for i := range ports {
		if ports[i].PhysicalName == name {
			return &ports[i]
		}
	}
	t.Fatalf("port %s not found", name)
	return nil
}

func TestSyncPortsInsertsUnknown(t *testing.T) {
	r, s, dev := newFixture(t)

	report, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether1", Description: "ether1", Status: parse.StatusFree},
		{PhysicalName: "ether2", Description: "WAN-UPLINK", Status: parse.StatusAssigned},
	})
	if err != nil {
		t.Fatalf("SyncPorts: %v", err)
	}
	if report.Added != 2 {
		t.Errorf("Added = %d, want 2", report.Added)
	}
	if got := portByName(t, s, dev.ID, "ether2"); got.Status != parse.StatusAssigned {
		t.Errorf("ether2 status = %s", got.Status)
	}
}

func TestSyncPortsMovesFreeToAssignedAndBack(t *testing.T) {
	r, s, dev := newFixture(t)

	if _, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether1", Description: "ether1", Status: parse.StatusFree},
	}); err != nil {
		t.Fatalf("initial sync: %v", err)
	}

	report, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether1", Description: "CORE-LINK", Status: parse.StatusAssigned},
	})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if report.Updated != 1 {
		t.Errorf("Updated = %d, want 1", report.Updated)
	}
	if got := portByName(t, s, dev.ID, "ether1"); got.Status != parse.StatusAssigned || got.Description != "CORE-LINK" {
		t.Errorf("after sync: %+v", got)
	}

	report, err = r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether1", Description: "ether1", Status: parse.StatusFree},
	})
	if err != nil {
		t.Fatalf("third sync: %v", err)
	}
	if got := portByName(t, s, dev.ID, "ether1"); got.Status != parse.StatusFree {
		t.Errorf("port did not return to free: %+v", got)
	}
	_ = report
}

func TestSyncPortsNeverDowngradesClientBinding(t *testing.T) {
	r, s, dev := newFixture(t)

	if _, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether3", Description: "CLIENTE-A", Status: parse.StatusAssigned},
	}); err != nil {
		t.Fatalf("initial sync: %v", err)
	}
	row := portByName(t, s, dev.ID, "ether3")
	if err := r.BindPortToClient(row.ID); err != nil {
		t.Fatalf("BindPortToClient: %v", err)
	}

	// Device now reports the port as unconfigured; the binding must hold.
	report, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether3", Description: "ether3", Status: parse.StatusFree},
	})
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if report.Protected != 1 {
		t.Errorf("Protected = %d, want 1", report.Protected)
	}
	if got := portByName(t, s, dev.ID, "ether3"); got.Status != parse.StatusAssignedToClient {
		t.Errorf("client binding lost: %+v", got)
	}
}

func TestSyncPortsKeepsRowsMissingFromReport(t *testing.T) {
	r, s, dev := newFixture(t)

	if _, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether1", Status: parse.StatusFree},
		{PhysicalName: "ether2", Status: parse.StatusFree},
	}); err != nil {
		t.Fatalf("initial sync: %v", err)
	}

	if _, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether1", Status: parse.StatusFree},
	}); err != nil {
		t.Fatalf("partial sync: %v", err)
	}
	ports, err := s.PortsByDevice(dev.ID)
	if err != nil {
		t.Fatalf("PortsByDevice: %v", err)
	}
	if len(ports) != 2 {
		t.Errorf("rows deleted by partial report: %d left", len(ports))
	}
}

func TestCaptureLimitersOnlyOnce(t *testing.T) {
	r, s, dev := newFixture(t)

	n, err := r.CaptureLimiters(dev.ID, []parse.Limiter{
		{Name: "CLIENTE-A", Bandwidth: "10M", Target: "ether3"},
	})
	if err != nil {
		t.Fatalf("CaptureLimiters: %v", err)
	}
	if n != 1 {
		t.Errorf("captured %d rows, want 1", n)
	}

	// A later discovery pass must not rewrite or duplicate.
	n, err = r.CaptureLimiters(dev.ID, []parse.Limiter{
		{Name: "CLIENTE-B", Bandwidth: "20M", Target: "ether4"},
	})
	if err != nil {
		t.Fatalf("second CaptureLimiters: %v", err)
	}
	if n != 0 {
		t.Errorf("second capture wrote %d rows", n)
	}
	rows, _ := s.LimitersByDevice(dev.ID)
	if len(rows) != 1 || rows[0].Name != "CLIENTE-A" {
		t.Errorf("limiter rows = %+v", rows)
	}
}

func TestBindAndRelease(t *testing.T) {
	r, s, dev := newFixture(t)

	if _, err := r.SyncPorts(dev.ID, []parse.Port{
		{PhysicalName: "ether1", Status: parse.StatusFree},
	}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	row := portByName(t, s, dev.ID, "ether1")

	if err := r.BindPortToClient(row.ID); err != nil {
		t.Fatalf("BindPortToClient: %v", err)
	}
	if err := r.BindPortToClient(row.ID); !errors.Is(err, util.ErrDuplicate) {
		t.Errorf("double bind: got %v, want ErrDuplicate", err)
	}

	if err := r.ReleaseClientBinding(row.ID); err != nil {
		t.Fatalf("ReleaseClientBinding: %v", err)
	}
	if got := portByName(t, s, dev.ID, "ether1"); got.Status != parse.StatusAssigned {
		t.Errorf("released port status = %s", got.Status)
	}
	if err := r.ReleaseClientBinding(row.ID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("double release: got %v, want ErrNotFound", err)
	}
}
