package store

import (
	"errors"
	"testing"
	"time"

	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/util"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	return s
}

func seedDevice(t *testing.T, s *Store, ip string) *Device {
	t.Helper()
	cred := &Credential{Name: "default-" + ip, Username: "admin", Secret: "secret"}
	if err := s.CreateCredential(cred); err != nil {
		t.Fatalf("creating credential: %v", err)
	}
	dev := &Device{IP: ip, Dialect: DialectRouterOS, Role: RoleNode, CredentialID: cred.ID}
	if err := s.CreateDevice(dev); err != nil {
		t.Fatalf("creating device: %v", err)
	}
	return dev
}

func TestDeviceUniqueIP(t *testing.T) {
	s := newTestStore(t)
	seedDevice(t, s, "10.0.0.1")

	dup := &Device{IP: "10.0.0.1", Dialect: DialectRouterOS, CredentialID: 1}
	err := s.CreateDevice(dup)
	if err == nil {
		t.Fatal("expected unique constraint violation on duplicate ip")
	}
	if !errors.Is(err, util.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}

func TestDeviceByIPNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DeviceByIP("192.0.2.1")
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeviceByIDPreloadsCredential(t *testing.T) {
	s := newTestStore(t)
	dev := seedDevice(t, s, "10.0.0.2")

	got, err := s.DeviceByID(dev.ID)
	if err != nil {
		t.Fatalf("DeviceByID: %v", err)
	}
	if got.Credential == nil || got.Credential.Username != "admin" {
		t.Errorf("expected credential preloaded, got %+v", got.Credential)
	}
}

func TestDeleteDeviceCascadesInventoryButKeepsSnapshots(t *testing.T) {
	s := newTestStore(t)
	dev := seedDevice(t, s, "10.0.0.3")

	err := s.CreatePorts([]PortRecord{
		{DeviceID: dev.ID, PhysicalName: "ether1", Status: parse.StatusFree},
	})
	if err != nil {
		t.Fatalf("CreatePorts: %v", err)
	}
	err = s.CreateLimiters([]LimiterRecord{
		{DeviceID: dev.ID, Name: "CLIENTE-A", Bandwidth: "10M", TargetPort: "ether3"},
	})
	if err != nil {
		t.Fatalf("CreateLimiters: %v", err)
	}
	err = s.CreateSnapshot(&ConfigSnapshot{
		DeviceID: dev.ID, CapturedAt: 1, ExportPath: "p", ExportHash: "h",
	})
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if err := s.DeleteDevice(dev.ID); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}

	ports, _ := s.PortsByDevice(dev.ID)
	if len(ports) != 0 {
		t.Errorf("expected port rows removed, got %d", len(ports))
	}
	limiters, _ := s.LimitersByDevice(dev.ID)
	if len(limiters) != 0 {
		t.Errorf("expected limiter rows removed, got %d", len(limiters))
	}
	snaps, _ := s.SnapshotsByDevice(dev.ID)
	if len(snaps) != 1 {
		t.Errorf("snapshot history must survive device deletion, got %d rows", len(snaps))
	}
}

func TestSnapshotsOrderedByCaptureTime(t *testing.T) {
	s := newTestStore(t)
	dev := seedDevice(t, s, "10.0.0.4")

	for _, ts := range []int64{300, 100, 200} {
		err := s.CreateSnapshot(&ConfigSnapshot{
			DeviceID: dev.ID, CapturedAt: ts, ExportPath: "p", ExportHash: "h",
		})
		if err != nil {
			t.Fatalf("CreateSnapshot: %v", err)
		}
	}

	snaps, err := s.SnapshotsByDevice(dev.ID)
	if err != nil {
		t.Fatalf("SnapshotsByDevice: %v", err)
	}
	var prev int64
	for _, snap := range snaps {
		if snap.CapturedAt < prev {
			t.Fatalf("snapshots out of capture order: %+v", snaps)
		}
		prev = snap.CapturedAt
	}
}

func TestUpsertModel(t *testing.T) {
	s := newTestStore(t)

	m1, err := s.UpsertModel("RB4011iGS+")
	if err != nil {
		t.Fatalf("UpsertModel: %v", err)
	}
	m2, err := s.UpsertModel("RB4011iGS+")
	if err != nil {
		t.Fatalf("UpsertModel second call: %v", err)
	}
	if m1.ID != m2.ID {
		t.Errorf("upsert created a second row: %d vs %d", m1.ID, m2.ID)
	}

	if m, err := s.UpsertModel(""); err != nil || m != nil {
		t.Errorf("empty chassis name should be a no-op, got %v %v", m, err)
	}
}

func TestDueJobs(t *testing.T) {
	s := newTestStore(t)
	dev := seedDevice(t, s, "10.0.0.5")

	img := &GoldenImage{ModelName: "RB4011iGS+", Filename: "routeros-7.14.2.npk"}
	if err := s.CreateImage(img); err != nil {
		t.Fatalf("CreateImage: %v", err)
	}

	now := time.Now()
	due := &PushJob{DeviceID: dev.ID, GoldenImageID: img.ID, Status: JobPending, ScheduledAt: now.Add(-time.Minute)}
	future := &PushJob{DeviceID: dev.ID, GoldenImageID: img.ID, Status: JobPending, ScheduledAt: now.Add(time.Hour)}
	for _, j := range []*PushJob{due, future} {
		if err := s.CreateJob(j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	jobs, err := s.DueJobs(now)
	if err != nil {
		t.Fatalf("DueJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != due.ID {
		t.Fatalf("expected only the due job, got %+v", jobs)
	}
	if jobs[0].Device == nil || jobs[0].Device.Credential == nil || jobs[0].GoldenImage == nil {
		t.Errorf("expected device, credential, and image preloaded")
	}

	if err := s.UpdateJobStatus(due.ID, JobCompleted); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	jobs, _ = s.DueJobs(now)
	if len(jobs) != 0 {
		t.Errorf("completed job must not come back as due")
	}
}
