package parse

import (
	"strings"

	"github.com/faro-networks/faro/pkg/util"
)

// PortStatus is the assignment state of a physical port.
type PortStatus string

const (
	// StatusFree means the port still carries its hardware default name.
	StatusFree PortStatus = "Free"
	// StatusAssigned means an operator renamed the port.
	StatusAssigned PortStatus = "Assigned"
	// StatusAssignedToClient means a client service is bound to the port.
	// Only the service-binding layer writes this status; resync never does.
	StatusAssignedToClient PortStatus = "AssignedToClient"
)

// Port is one physical interface as reported by a device.
type Port struct {
	PhysicalName string
	Description  string
	Status       PortStatus
}

// derive classifies a port: a configured name fold-equal to the hardware
// default (or absent) means nobody claimed the port yet.
func derive(physical, configured string) PortStatus {
	if configured == "" || util.FoldEqual(physical, configured) {
		return StatusFree
	}
	return StatusAssigned
}

// PairedPorts parses the "<port> - <configured-name>" pair listing printed
// by the router dialect, one interface per line. Lines without the pair
// separator are skipped; zero matching lines is an empty result, not an
// error.
func PairedPorts(raw string) ([]Port, error) {
	ports := []Port{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		physical, configured, ok := strings.Cut(line, " - ")
		if !ok {
			continue
		}
		physical = strings.TrimSpace(physical)
		configured = strings.TrimSpace(configured)
		if physical == "" {
			continue
		}
		ports = append(ports, Port{
			PhysicalName: physical,
			Description:  configured,
			Status:       derive(physical, configured),
		})
	}
	return ports, nil
}

// TablePorts parses the fixed-column interface table printed by the switch
// dialect ("Port  Name  Status ..."). The header row is mandatory: it
// defines the column boundaries for every data row. Input with no header
// is a ParseError; a header with no rows is an empty result.
func TablePorts(raw string) ([]Port, error) {
	lines := strings.Split(raw, "\n")

	headerIdx := -1
	var portCol, nameCol, statusCol int
	for i, line := range lines {
		portCol = strings.Index(line, "Port")
		nameCol = strings.Index(line, "Name")
		statusCol = strings.Index(line, "Status")
		if portCol >= 0 && nameCol > portCol && statusCol > nameCol {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, util.NewParseError("port-table", "missing header line")
	}

	ports := []Port{}
	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) <= nameCol {
			continue
		}
		physical := strings.TrimSpace(line[portCol:nameCol])
		if physical == "" {
			continue
		}
		end := statusCol
		if len(line) < end {
			end = len(line)
		}
		configured := strings.TrimSpace(line[nameCol:end])
		ports = append(ports, Port{
			PhysicalName: physical,
			Description:  configured,
			Status:       derive(physical, configured),
		})
	}
	return ports, nil
}
