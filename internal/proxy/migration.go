package proxy

import (
	"fmt"

	"github.com/roach88/exproxy/internal/ir"
	"github.com/roach88/exproxy/internal/storage"
)

// MigrationNamespace holds the one-shot migration record.
var MigrationNamespace = storage.NamespaceFor("exproxy.migration")

const (
	fieldState = iota
	fieldMigrator
	fieldTxID
	fieldBootstrapper
)

// MigrationState is the lifecycle of a Dispatcher.
type MigrationState int64

const (
	Unmigrated MigrationState = iota
	Migrating
	Migrated
)

// String implements fmt.Stringer.
func (s MigrationState) String() string {
	switch s {
	case Unmigrated:
		return "unmigrated"
	case Migrating:
		return "migrating"
	case Migrated:
		return "migrated"
	default:
		return fmt.Sprintf("MigrationState(%d)", int64(s))
	}
}

// MigrationRecord is written once by the bootstrap and never changes after.
type MigrationRecord struct {
	State        MigrationState
	Migrator     ir.Address // Account whose code performed the install
	TxID         string     // Call that performed the bootstrap
	Bootstrapper ir.Address // Bootstrap feature deployed by the constructor
}

// LoadMigration reads the record.
func LoadMigration(st storage.Storage) (MigrationRecord, error) {
	var rec MigrationRecord
	state, err := storage.LoadInt(st, MigrationNamespace.Field(fieldState))
	if err != nil {
		return rec, err
	}
	rec.State = MigrationState(state)
	if rec.Migrator, err = storage.LoadAddress(st, MigrationNamespace.Field(fieldMigrator)); err != nil {
		return rec, err
	}
	if rec.TxID, err = storage.LoadString(st, MigrationNamespace.Field(fieldTxID)); err != nil {
		return rec, err
	}
	if rec.Bootstrapper, err = storage.LoadAddress(st, MigrationNamespace.Field(fieldBootstrapper)); err != nil {
		return rec, err
	}
	return rec, nil
}

// StoreMigration writes the record.
func StoreMigration(st storage.Storage, rec MigrationRecord) error {
	if err := storage.StoreInt(st, MigrationNamespace.Field(fieldState), int64(rec.State)); err != nil {
		return err
	}
	if err := storage.StoreAddress(st, MigrationNamespace.Field(fieldMigrator), rec.Migrator); err != nil {
		return err
	}
	if err := storage.StoreString(st, MigrationNamespace.Field(fieldTxID), rec.TxID); err != nil {
		return err
	}
	return storage.StoreAddress(st, MigrationNamespace.Field(fieldBootstrapper), rec.Bootstrapper)
}

// Value renders the record for results and CLI output.
func (r MigrationRecord) Value() ir.Object {
	return ir.Object{
		"state":        ir.String(r.State.String()),
		"migrator":     r.Migrator.Value(),
		"txId":         ir.String(r.TxID),
		"bootstrapper": r.Bootstrapper.Value(),
	}
}
