package modbus

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// registerCSVColumns is the header row of a register sheet. Column names
// mirror DeviceRegister's json tags, so a sheet exported by one deployment
// loads unchanged in another.
var registerCSVColumns = []string{
	"uuid", "tag", "alias", "slaverId", "function", "readAddress",
	"readQuantity", "dataType", "dataOrder", "bitPosition", "bitMask",
	"weight", "frequency", "virtual",
}

// validDataOrders lists the byte orderings DecodeValue understands.
var validDataOrders = map[string]struct{}{
	"A": {}, "AB": {}, "BA": {}, "ABCD": {}, "DCBA": {},
	"BADC": {}, "CDAB": {}, "ABCDEFGH": {}, "HGFEDCBA": {},
	"BADCFEHG": {}, "GHEFCDAB": {},
}

// csvRow gives the row parser named-column access to one record, tracking
// the sheet line number for error messages.
type csvRow struct {
	columns map[string]int
	cells   []string
	line    int
}

func (r csvRow) cell(name string) string {
	idx, ok := r.columns[name]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

func (r csvRow) uintCell(name string, bits int) (uint64, error) {
	raw := r.cell(name)
	if raw == "" {
		return 0, nil
	}
	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		base = 0
	}
	v, err := strconv.ParseUint(raw, base, bits)
	if err != nil {
		return 0, fmt.Errorf("row %d: invalid %q: %w", r.line, name, err)
	}
	return v, nil
}

func (r csvRow) floatCell(name string) (float64, bool, error) {
	raw := r.cell(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("row %d: invalid %q: %w", r.line, name, err)
	}
	return v, true, nil
}

// ParseRegisterCSV reads a register sheet: a header row naming columns from
// registerCSVColumns (uuid, tag, slaverId, function, readAddress, and
// dataType are mandatory) followed by one register per row. Cells left
// empty take the defaults the polling layer expects: ReadQuantity derived
// from the data type, DataOrder "ABCD", BitMask 0x01, Weight 1.0,
// Frequency 1000 ms.
func ParseRegisterCSV(reader io.Reader) ([]DeviceRegister, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("modbus: reading register sheet: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("modbus: register sheet is empty")
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range []string{"uuid", "tag", "slaverId", "function", "readAddress", "dataType"} {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("modbus: register sheet is missing the %q column", name)
		}
	}

	registers := make([]DeviceRegister, 0, len(records)-1)
	for i, record := range records[1:] {
		row := csvRow{columns: columns, cells: record, line: i + 2}
		register, err := parseRegisterRow(row)
		if err != nil {
			return nil, err
		}
		if err := checkRegisterRow(register, row.line); err != nil {
			return nil, err
		}
		registers = append(registers, register)
	}
	return registers, nil
}

func parseRegisterRow(row csvRow) (DeviceRegister, error) {
	reg := DeviceRegister{
		UUID:     row.cell("uuid"),
		Tag:      row.cell("tag"),
		Alias:    row.cell("alias"),
		DataType: row.cell("dataType"),
	}
	for name, value := range map[string]string{"uuid": reg.UUID, "tag": reg.Tag, "dataType": reg.DataType} {
		if value == "" {
			return reg, fmt.Errorf("modbus: row %d: %q must not be empty", row.line, name)
		}
	}

	slaveID, err := row.uintCell("slaverId", 8)
	if err != nil {
		return reg, err
	}
	reg.SlaverId = uint8(slaveID)

	function, err := row.uintCell("function", 8)
	if err != nil {
		return reg, err
	}
	reg.Function = uint8(function)

	address, err := row.uintCell("readAddress", 16)
	if err != nil {
		return reg, err
	}
	reg.ReadAddress = uint16(address)

	quantity, err := row.uintCell("readQuantity", 16)
	if err != nil {
		return reg, err
	}
	reg.ReadQuantity = uint16(quantity)
	if reg.ReadQuantity == 0 {
		if _, err := reg.CalculateReadQuantity(); err != nil {
			return reg, fmt.Errorf("modbus: row %d: deriving read quantity for %q: %w", row.line, reg.DataType, err)
		}
	}

	reg.DataOrder = row.cell("dataOrder")
	if reg.DataOrder == "" {
		reg.DataOrder = "ABCD"
	}

	bitPosition, err := row.uintCell("bitPosition", 16)
	if err != nil {
		return reg, err
	}
	reg.BitPosition = uint16(bitPosition)

	bitMask, err := row.uintCell("bitMask", 16)
	if err != nil {
		return reg, err
	}
	reg.BitMask = uint16(bitMask)
	if row.cell("bitMask") == "" {
		reg.BitMask = 0x01
	}

	weight, ok, err := row.floatCell("weight")
	if err != nil {
		return reg, err
	}
	reg.Weight = 1.0
	if ok {
		reg.Weight = weight
	}

	frequency, err := row.uintCell("frequency", 64)
	if err != nil {
		return reg, err
	}
	reg.Frequency = frequency
	if reg.Frequency == 0 {
		reg.Frequency = 1000
	}

	reg.Virtual = strings.EqualFold(row.cell("virtual"), "true")
	return reg, nil
}

// checkRegisterRow enforces the consistency rules a register must satisfy
// before the grouping/polling layer may schedule it.
func checkRegisterRow(reg DeviceRegister, line int) error {
	switch reg.Function {
	case FuncCodeReadCoils, FuncCodeReadDiscreteInputs,
		FuncCodeReadHoldingRegisters, FuncCodeReadInputRegisters,
		FuncCodeWriteSingleCoil, FuncCodeWriteSingleRegister,
		FuncCodeWriteMultipleCoils, FuncCodeWriteMultipleRegisters:
	default:
		return fmt.Errorf("modbus: row %d: function code %d is not pollable", line, reg.Function)
	}

	expected := reg
	if _, err := expected.CalculateReadQuantity(); err != nil {
		return fmt.Errorf("modbus: row %d: invalid data type %q: %w", line, reg.DataType, err)
	}
	// A variable-length type (string) reports 0; any explicit quantity is
	// acceptable for it.
	if expected.ReadQuantity != 0 && reg.ReadQuantity != expected.ReadQuantity {
		return fmt.Errorf("modbus: row %d: read quantity %d does not match %d required by data type %q",
			line, reg.ReadQuantity, expected.ReadQuantity, reg.DataType)
	}

	if _, ok := validDataOrders[reg.DataOrder]; !ok {
		return fmt.Errorf("modbus: row %d: unknown data order %q", line, reg.DataOrder)
	}

	if reg.DataType == "bool" || reg.DataType == "bitfield" {
		if reg.BitPosition > 15 {
			return fmt.Errorf("modbus: row %d: bit position %d exceeds 15", line, reg.BitPosition)
		}
	} else if reg.BitPosition != 0 {
		return fmt.Errorf("modbus: row %d: bit position only applies to bool/bitfield, not %q", line, reg.DataType)
	}
	return nil
}

// WriteRegisterCSV writes registers as a sheet ParseRegisterCSV reads back.
func WriteRegisterCSV(writer io.Writer, registers []DeviceRegister) error {
	w := csv.NewWriter(writer)
	if err := w.Write(registerCSVColumns); err != nil {
		return fmt.Errorf("modbus: writing register sheet header: %w", err)
	}
	for _, reg := range registers {
		record := []string{
			reg.UUID,
			reg.Tag,
			reg.Alias,
			strconv.FormatUint(uint64(reg.SlaverId), 10),
			strconv.FormatUint(uint64(reg.Function), 10),
			strconv.FormatUint(uint64(reg.ReadAddress), 10),
			strconv.FormatUint(uint64(reg.ReadQuantity), 10),
			reg.DataType,
			reg.DataOrder,
			strconv.FormatUint(uint64(reg.BitPosition), 10),
			fmt.Sprintf("0x%04X", reg.BitMask),
			strconv.FormatFloat(reg.Weight, 'f', -1, 64),
			strconv.FormatUint(reg.Frequency, 10),
			strconv.FormatBool(reg.Virtual),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("modbus: writing register sheet row for %q: %w", reg.Tag, err)
		}
	}
	w.Flush()
	return w.Error()
}
