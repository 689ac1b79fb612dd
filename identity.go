package modbus

import "sort"

// DeviceIDObject is a single device identification object as returned by
// FC43/14.
type DeviceIDObject struct {
	ID    byte
	Value []byte
}

// Device identification object IDs, per the Modbus application protocol
// specification's three access categories.
const (
	ObjectVendorName          = 0x00
	ObjectProductCode         = 0x01
	ObjectMajorMinorRevision  = 0x02
	ObjectVendorURL           = 0x03
	ObjectProductName         = 0x04
	ObjectModelName           = 0x05
	ObjectUserApplicationName = 0x06
)

// Device identification read codes.
const (
	ReadDeviceIDBasic      = 0x01
	ReadDeviceIDRegular    = 0x02
	ReadDeviceIDExtended   = 0x03
	ReadDeviceIDIndividual = 0x04
)

// ServerIdentity describes a server's FC17 (ReportSlaveID) and FC43/14
// (ReadDeviceIdentification) identity, plus ConformityLevel reported
// alongside every device-ID response.
type ServerIdentity struct {
	Running         bool
	ConformityLevel byte

	VendorName          string
	ProductCode         string
	MajorMinorRevision  string
	VendorURL           string
	ProductName         string
	ModelName           string
	UserApplicationName string

	Extended map[byte]string
}

// DefaultServerIdentity returns a minimal identity sufficient to answer
// FC17/FC43 without per-test configuration.
func DefaultServerIdentity() *ServerIdentity {
	return &ServerIdentity{
		Running:            true,
		ConformityLevel:    0x01,
		VendorName:         "gomodbus",
		ProductCode:        "GOMB",
		MajorMinorRevision: "1.0",
	}
}

// Objects returns the device identification objects visible at readCode,
// in ascending object-ID order.
func (id *ServerIdentity) Objects(readCode byte) []DeviceIDObject {
	basic := []DeviceIDObject{
		{ObjectVendorName, []byte(id.VendorName)},
		{ObjectProductCode, []byte(id.ProductCode)},
		{ObjectMajorMinorRevision, []byte(id.MajorMinorRevision)},
	}
	if readCode == ReadDeviceIDBasic {
		return basic
	}

	regular := append(basic,
		DeviceIDObject{ObjectVendorURL, []byte(id.VendorURL)},
		DeviceIDObject{ObjectProductName, []byte(id.ProductName)},
		DeviceIDObject{ObjectModelName, []byte(id.ModelName)},
		DeviceIDObject{ObjectUserApplicationName, []byte(id.UserApplicationName)},
	)
	if readCode == ReadDeviceIDRegular {
		return regular
	}

	extendedIDs := make([]int, 0, len(id.Extended))
	for objID := range id.Extended {
		extendedIDs = append(extendedIDs, int(objID))
	}
	sort.Ints(extendedIDs)

	extended := regular
	for _, objID := range extendedIDs {
		extended = append(extended, DeviceIDObject{byte(objID), []byte(id.Extended[byte(objID)])})
	}
	return extended
}
