package modbus

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBlock implements DataBlock by reading and writing rows in a SQLite
// table instead of an in-memory slice or map, for slaves whose register
// state must survive a restart. It is opt-in: a server substitutes it for
// any of the four named blocks on a SlaveContext, while SequentialBlock
// and SparseBlock remain the defaults for everything else.
type SQLiteBlock struct {
	db    *sql.DB
	table string
}

// NewSQLiteRegisterBlock opens (or creates) a register-valued table named
// table in the SQLite database at path.
func NewSQLiteRegisterBlock(path, table string) (*SQLiteBlock, error) {
	return newSQLiteBlock(path, table)
}

// NewSQLiteBitBlock opens (or creates) a bit-valued table named table in
// the SQLite database at path. Bits are stored as 0/1 in the same integer
// column a register block uses; GetBits/SetBits do the bool<->int
// conversion at the edge.
func NewSQLiteBitBlock(path, table string) (*SQLiteBlock, error) {
	return newSQLiteBlock(path, table)
}

func newSQLiteBlock(path, table string) (*SQLiteBlock, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("modbus: opening sqlite block %q: %w", path, err)
	}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (address INTEGER PRIMARY KEY, value INTEGER NOT NULL)`, table)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("modbus: creating sqlite block table %q: %w", table, err)
	}
	return &SQLiteBlock{db: db, table: table}, nil
}

// Seed pre-populates address..address+len(values) with values, creating
// rows that did not previously exist. Used to stand up a fixed address
// range the way NewSequentialRegisterBlock does for the in-memory blocks.
func (b *SQLiteBlock) Seed(address int, values []uint16) error {
	return b.SetRegisters(address, values)
}

func (b *SQLiteBlock) Validate(address, quantity int) bool {
	if address < 0 || quantity <= 0 {
		return false
	}
	row := b.db.QueryRow(
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE address >= ? AND address < ?`, b.table),
		address, address+quantity)
	var count int
	if err := row.Scan(&count); err != nil {
		return false
	}
	return count == quantity
}

func (b *SQLiteBlock) GetRegisters(address, quantity int) ([]uint16, error) {
	out := make([]uint16, quantity)
	for i := range out {
		var v int64
		err := b.db.QueryRow(
			fmt.Sprintf(`SELECT value FROM %s WHERE address = ?`, b.table),
			address+i).Scan(&v)
		switch {
		case err == sql.ErrNoRows:
			return nil, NewModbusError(0, ExceptionIllegalDataAddress)
		case err != nil:
			return nil, NewModbusError(0, ExceptionSlaveDeviceFailure)
		}
		out[i] = uint16(v)
	}
	return out, nil
}

func (b *SQLiteBlock) SetRegisters(address int, values []uint16) error {
	tx, err := b.db.Begin()
	if err != nil {
		return NewModbusError(0, ExceptionSlaveDeviceFailure)
	}
	stmt, err := tx.Prepare(fmt.Sprintf(
		`INSERT INTO %s(address, value) VALUES(?, ?) ON CONFLICT(address) DO UPDATE SET value = excluded.value`,
		b.table))
	if err != nil {
		tx.Rollback()
		return NewModbusError(0, ExceptionSlaveDeviceFailure)
	}
	defer stmt.Close()
	for i, v := range values {
		if _, err := stmt.Exec(address+i, v); err != nil {
			tx.Rollback()
			return NewModbusError(0, ExceptionSlaveDeviceFailure)
		}
	}
	if err := tx.Commit(); err != nil {
		return NewModbusError(0, ExceptionSlaveDeviceFailure)
	}
	return nil
}

func (b *SQLiteBlock) GetBits(address, quantity int) ([]bool, error) {
	regs, err := b.GetRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	out := make([]bool, quantity)
	for i, v := range regs {
		out[i] = v != 0
	}
	return out, nil
}

func (b *SQLiteBlock) SetBits(address int, values []bool) error {
	regs := make([]uint16, len(values))
	for i, v := range values {
		if v {
			regs[i] = 1
		}
	}
	return b.SetRegisters(address, regs)
}

// Close releases the underlying database handle.
func (b *SQLiteBlock) Close() error {
	return b.db.Close()
}
