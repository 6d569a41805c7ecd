// Package inventory reconciles what a device reports about its ports and
// limiter rules with the rows the store holds. Reconciliation only ever
// adds rows and moves ports between the two automatic states; it never
// deletes inventory and never touches a port an operator bound to a
// client service.
package inventory

import (
	"github.com/faro-networks/faro/pkg/parse"
	"github.com/faro-networks/faro/pkg/store"
	"github.com/faro-networks/faro/pkg/util"
)

// Reconciler applies discovery output to the inventory tables.
type Reconciler struct {
	store *store.Store
}

// New returns a reconciler writing through s.
func New(s *store.Store) *Reconciler {
	return &Reconciler{store: s}
}

// PortSyncReport summarizes one reconciliation pass.
type PortSyncReport struct {
	Added     int
	Updated   int
	Unchanged int
	Protected int // rows skipped because the port is bound to a client
}

// SyncPorts merges the ports a device reports into its inventory rows.
// Unknown ports are inserted. Known ports move between Free and Assigned
// as their remote description dictates. Ports in AssignedToClient keep
// their status no matter what the device reports; the description is
// still refreshed. Ports missing from the report are left alone.
func (r *Reconciler) SyncPorts(deviceID uint, observed []parse.Port) (*PortSyncReport, error) {
	existing, err := r.store.PortsByDevice(deviceID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*store.PortRecord, len(existing))
	for i := range existing {
		byName[existing[i].PhysicalName] = &existing[i]
	}

	report := &PortSyncReport{}
	var inserts []store.PortRecord

	for _, p := range observed {
		row, ok := byName[p.PhysicalName]
		if !ok {
			inserts = append(inserts, store.PortRecord{
				DeviceID:     deviceID,
				PhysicalName: p.PhysicalName,
				Description:  p.Description,
				Status:       p.Status,
			})
			report.Added++
			continue
		}

		if row.Status == parse.StatusAssignedToClient {
			// Client bindings outlive whatever the device says. Only a
			// description refresh is allowed.
			if row.Description != p.Description {
				row.Description = p.Description
				if err := r.store.UpdatePort(row); err != nil {
					return nil, err
				}
			}
			report.Protected++
			continue
		}

		if row.Status == p.Status && row.Description == p.Description {
			report.Unchanged++
			continue
		}
		row.Status = p.Status
		row.Description = p.Description
		if err := r.store.UpdatePort(row); err != nil {
			return nil, err
		}
		report.Updated++
	}

	if len(inserts) > 0 {
		if err := r.store.CreatePorts(inserts); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// CaptureLimiters records a device's limiter rules at discovery time.
// Limiter rows are written once; later syncs must not rewrite them, so a
// device that already has limiter rows is left untouched.
func (r *Reconciler) CaptureLimiters(deviceID uint, observed []parse.Limiter) (int, error) {
	existing, err := r.store.LimitersByDevice(deviceID)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	rows := make([]store.LimiterRecord, 0, len(observed))
	for _, l := range observed {
		rows = append(rows, store.LimiterRecord{
			DeviceID:   deviceID,
			Name:       l.Name,
			Bandwidth:  l.Bandwidth,
			TargetPort: l.Target,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := r.store.CreateLimiters(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// BindPortToClient marks a port as serving a client. Only a Free or
// Assigned port can be bound.
func (r *Reconciler) BindPortToClient(portID uint) error {
	row, err := r.store.PortByID(portID)
	if err != nil {
		return err
	}
	if row.Status == parse.StatusAssignedToClient {
		return util.NewDuplicateError("port binding", row.PhysicalName)
	}
	return r.store.SetPortStatus(portID, parse.StatusAssignedToClient)
}

// ReleaseClientBinding returns a client-bound port to Assigned, from
// where the next sync pass will settle its real state.
func (r *Reconciler) ReleaseClientBinding(portID uint) error {
	row, err := r.store.PortByID(portID)
	if err != nil {
		return err
	}
	if row.Status != parse.StatusAssignedToClient {
		return util.NewNotFoundError("port binding", row.PhysicalName)
	}
	return r.store.SetPortStatus(portID, parse.StatusAssigned)
}
