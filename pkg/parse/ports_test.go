package parse

import (
	"errors"
	"testing"

	"github.com/faro-networks/faro/pkg/util"
)

func TestPairedPorts(t *testing.T) {
	raw := `ether1 - ether1
ether2 - WAN-UPLINK
ether3 - Ether3
sfp-sfpplus1 - TRONCAL-NORTE
`
	ports, err := PairedPorts(raw)
	if err != nil {
		t.Fatalf("PairedPorts: %v", err)
	}
	if len(ports) != 4 {
		t.Fatalf("expected 4 ports, got %d", len(ports))
	}

	want := []Port{
		{PhysicalName: "ether1", Description: "ether1", Status: StatusFree},
		{PhysicalName: "ether2", Description: "WAN-UPLINK", Status: StatusAssigned},
		{PhysicalName: "ether3", Description: "Ether3", Status: StatusFree},
		{PhysicalName: "sfp-sfpplus1", Description: "TRONCAL-NORTE", Status: StatusAssigned},
	}
	for i, w := range want {
		if ports[i] != w {
			t.Errorf("port %d = %+v, want %+v", i, ports[i], w)
		}
	}
}

func TestPairedPortsSkipsNoise(t *testing.T) {
	raw := "\n# interface listing\nether1 - ether1\ngarbage line without separator\n\n"
	ports, err := PairedPorts(raw)
	if err != nil {
		t.Fatalf("PairedPorts: %v", err)
	}
	if len(ports) != 1 {
		t.Fatalf("expected 1 port, got %d", len(ports))
	}
}

func TestPairedPortsEmptyInput(t *testing.T) {
	ports, err := PairedPorts("")
	if err != nil {
		t.Fatalf("empty input should not error: %v", err)
	}
	if len(ports) != 0 {
		t.Fatalf("expected empty result, got %d", len(ports))
	}
}

const interfacesStatus = `Port      Name               Status       Vlan       Duplex  Speed Type
Gi1/0/1   uplink-core        connected    trunk      a-full  a-1000 10/100/1000BaseTX
Gi1/0/2                      notconnect   1            auto    auto 10/100/1000BaseTX
Gi1/0/3   Gi1/0/3            notconnect   1            auto    auto 10/100/1000BaseTX
Gi1/0/4   CLIENTE-LOPEZ      connected    104        a-full   a-100 10/100/1000BaseTX
`

func TestTablePorts(t *testing.T) {
	ports, err := TablePorts(interfacesStatus)
	if err != nil {
		t.Fatalf("TablePorts: %v", err)
	}
	if len(ports) != 4 {
		t.Fatalf("expected 4 ports, got %d", len(ports))
	}

	want := []Port{
		{PhysicalName: "Gi1/0/1", Description: "uplink-core", Status: StatusAssigned},
		{PhysicalName: "Gi1/0/2", Description: "", Status: StatusFree},
		{PhysicalName: "Gi1/0/3", Description: "Gi1/0/3", Status: StatusFree},
		{PhysicalName: "Gi1/0/4", Description: "CLIENTE-LOPEZ", Status: StatusAssigned},
	}
	for i, w := range want {
		if ports[i] != w {
			t.Errorf("port %d = %+v, want %+v", i, ports[i], w)
		}
	}
}

func TestTablePortsMissingHeader(t *testing.T) {
	_, err := TablePorts("Gi1/0/1   uplink   connected")
	if !errors.Is(err, util.ErrParse) {
		t.Fatalf("expected ErrParse for missing header, got %v", err)
	}
}

func TestTablePortsHeaderOnly(t *testing.T) {
	ports, err := TablePorts("Port      Name               Status\n")
	if err != nil {
		t.Fatalf("header-only input should not error: %v", err)
	}
	if len(ports) != 0 {
		t.Fatalf("expected empty result, got %d", len(ports))
	}
}
