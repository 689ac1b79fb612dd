package modbus

import (
	"net"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseRegisterCSVAppliesDefaults(t *testing.T) {
	sheet := strings.Join([]string{
		"uuid,tag,slaverId,function,readAddress,dataType",
		"u1,temperature,1,3,0,uint32",
	}, "\n")

	registers, err := ParseRegisterCSV(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("ParseRegisterCSV failed: %v", err)
	}
	if len(registers) != 1 {
		t.Fatalf("parsed %d registers, want 1", len(registers))
	}

	reg := registers[0]
	if reg.ReadQuantity != 2 {
		t.Errorf("ReadQuantity = %d, want 2 (derived from uint32)", reg.ReadQuantity)
	}
	if reg.DataOrder != "ABCD" {
		t.Errorf("DataOrder = %q, want ABCD", reg.DataOrder)
	}
	if reg.BitMask != 0x01 {
		t.Errorf("BitMask = %#04x, want 0x01", reg.BitMask)
	}
	if reg.Weight != 1.0 {
		t.Errorf("Weight = %v, want 1.0", reg.Weight)
	}
	if reg.Frequency != 1000 {
		t.Errorf("Frequency = %d, want 1000", reg.Frequency)
	}
}

func TestRegisterCSVRoundTrip(t *testing.T) {
	registers := []DeviceRegister{
		{
			UUID: "u1", Tag: "flow", Alias: "flow rate", SlaverId: 1,
			Function: 3, ReadAddress: 0x10, ReadQuantity: 2,
			DataType: "float32", DataOrder: "DCBA", BitMask: 0x01,
			Weight: 0.1, Frequency: 500,
		},
		{
			UUID: "u2", Tag: "alarm", SlaverId: 2,
			Function: 1, ReadAddress: 4, ReadQuantity: 1,
			DataType: "bool", DataOrder: "AB", BitPosition: 3, BitMask: 0x08,
			Weight: 1, Frequency: 1000, Virtual: true,
		},
	}

	var sheet strings.Builder
	if err := WriteRegisterCSV(&sheet, registers); err != nil {
		t.Fatalf("WriteRegisterCSV failed: %v", err)
	}

	parsed, err := ParseRegisterCSV(strings.NewReader(sheet.String()))
	if err != nil {
		t.Fatalf("ParseRegisterCSV failed: %v", err)
	}
	if !reflect.DeepEqual(parsed, registers) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", parsed, registers)
	}
}

func TestParseRegisterCSVMissingColumn(t *testing.T) {
	sheet := "uuid,tag,slaverId,function,readAddress\nu1,t1,1,3,0"
	if _, err := ParseRegisterCSV(strings.NewReader(sheet)); err == nil {
		t.Error("a sheet without the dataType column must be rejected")
	}
}

func TestParseRegisterCSVRejectsBadRows(t *testing.T) {
	header := "uuid,tag,slaverId,function,readAddress,readQuantity,dataType,dataOrder,bitPosition"
	tests := []struct {
		name string
		row  string
	}{
		{"non-pollable function code", "u1,t1,1,8,0,1,uint16,AB,0"},
		{"quantity does not match data type", "u1,t1,1,3,0,1,uint32,ABCD,0"},
		{"unknown data order", "u1,t1,1,3,0,1,uint16,XY,0"},
		{"bit position on a word type", "u1,t1,1,3,0,1,uint16,AB,3"},
		{"empty tag", "u1,,1,3,0,1,uint16,AB,0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sheet := header + "\n" + tt.row
			if _, err := ParseRegisterCSV(strings.NewReader(sheet)); err == nil {
				t.Errorf("row %q must be rejected", tt.row)
			}
		})
	}
}

func TestRegisterManagerLoadRegistersFromCSV(t *testing.T) {
	addr, stop := newLoopbackModbusServer(t)
	defer stop()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	handler := NewModbusTCPHandler(conn, ClientConfig{Timeout: 5 * time.Second, MaxRetries: 1})
	manager := NewRegisterManager(handler, 10, nil)

	sheet := strings.Join([]string{
		"uuid,tag,slaverId,function,readAddress,readQuantity,dataType,dataOrder",
		"u1,reg-a,1,3,0,1,uint16,AB",
		"u2,reg-b,1,3,1,1,uint16,AB",
	}, "\n")
	if err := manager.LoadRegistersFromCSV(strings.NewReader(sheet)); err != nil {
		t.Fatalf("LoadRegistersFromCSV failed: %v", err)
	}

	for _, err := range manager.ReadGroupedData() {
		if err != nil {
			t.Errorf("ReadGroupedData() error = %v, want nil", err)
		}
	}

	duplicate := strings.Join([]string{
		"uuid,tag,slaverId,function,readAddress,readQuantity,dataType,dataOrder",
		"u1,same,1,3,0,1,uint16,AB",
		"u2,same,1,3,1,1,uint16,AB",
	}, "\n")
	if err := manager.LoadRegistersFromCSV(strings.NewReader(duplicate)); err == nil {
		t.Error("duplicate tags in a sheet must be rejected")
	}
}
