package mapper

import (
	"context"
	"fmt"

	"github.com/ammar0144/guideresto/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KeyPolicy says where a table's surrogate keys come from
type KeyPolicy int

const (
	// GeneratedOnInsert lets the store assign the key; it is read back
	// after the INSERT.
	GeneratedOnInsert KeyPolicy = iota
	// PreAllocated draws the key from a SequenceSource before the INSERT.
	PreAllocated
)

func (p KeyPolicy) String() string {
	switch p {
	case GeneratedOnInsert:
		return "generated_on_insert"
	case PreAllocated:
		return "pre_allocated"
	default:
		return "unknown"
	}
}

// Sequence names
const (
	SequenceCriteria    = "evaluation_criteria"
	SequenceEvaluations = "evaluations"
	SequenceGrades      = "grades"
)

// SequenceSource allocates pre-allocated keys. Values returned for one
// name are unique and increasing.
type SequenceSource interface {
	Next(ctx context.Context, name string) (int64, error)
}

// ConnSource hands out the connection statements must run on: the open
// transaction if there is one, the session database otherwise.
type ConnSource interface {
	Conn(ctx context.Context) (*gorm.DB, context.CancelFunc, error)
}

// TableSequence keeps counters in the sequences table. Allocation runs on
// the session connection, so inside a transaction an allocation is rolled
// back together with the rows that used it.
type TableSequence struct {
	conns ConnSource
}

// NewTableSequence returns a sequence source over the sequences table
func NewTableSequence(conns ConnSource) *TableSequence {
	return &TableSequence{conns: conns}
}

// Next increments the named counter, creating it at 1, and returns it
func (s *TableSequence) Next(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, invalidArgument("sequence name is empty")
	}

	conn, cancel, err := s.conns.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	var value int64
	err = conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Exec("UPDATE "+tableSequences+" SET value = value + 1 WHERE name = ?", name)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&sequenceRow{Name: name, Value: 1}).Error; err != nil {
				return err
			}
		}

		query, args := db.NewBuilder(tableSequences).
			Select("value").
			Where("name", db.Equal, name).
			BuildSelect()
		return tx.Raw(query, args...).Scan(&value).Error
	})
	if err != nil {
		return 0, storageError("sequence", tableSequences, fmt.Errorf("next %q: %w", name, err))
	}
	return value, nil
}

// Advance raises the named counter to floor unless it is already past it,
// creating it if needed, and returns its value
func (s *TableSequence) Advance(ctx context.Context, name string, floor int64) (int64, error) {
	if name == "" {
		return 0, invalidArgument("sequence name is empty")
	}

	conn, cancel, err := s.conns.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	var value int64
	err = conn.Transaction(func(tx *gorm.DB) error {
		res := tx.Exec("UPDATE "+tableSequences+" SET value = ? WHERE name = ? AND value < ?", floor, name, floor)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			row := sequenceRow{Name: name, Value: floor}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return err
			}
		}

		query, args := db.NewBuilder(tableSequences).
			Select("value").
			Where("name", db.Equal, name).
			BuildSelect()
		return tx.Raw(query, args...).Scan(&value).Error
	})
	if err != nil {
		return 0, storageError("sequence", tableSequences, fmt.Errorf("advance %q: %w", name, err))
	}
	return value, nil
}

// SequenceAdvancer is a sequence source that can be moved past ids
// allocated by another source
type SequenceAdvancer interface {
	Advance(ctx context.Context, name string, floor int64) (int64, error)
}

// sequenceTables lists the tables drawing ids from each sequence
var sequenceTables = map[string][]string{
	SequenceCriteria:    {tableCriteria},
	SequenceEvaluations: {tableBasicEvaluations, tableCompleteEvaluations},
	SequenceGrades:      {tableGrades},
}

// SeedSequences advances every sequence of seq to the largest id already
// stored in the tables that draw from it. Tables that do not exist yet
// count as empty; sequences with no stored ids are left alone.
func SeedSequences(ctx context.Context, manager *db.Manager, seq SequenceAdvancer) error {
	conn := manager.DB().WithContext(ctx)
	for name, tables := range sequenceTables {
		var floor int64
		for _, table := range tables {
			if !conn.Migrator().HasTable(table) {
				continue
			}
			var top int64
			if err := conn.Table(table).Select("COALESCE(MAX(id), 0)").Scan(&top).Error; err != nil {
				return storageError("sequence", table, fmt.Errorf("max id: %w", err))
			}
			if top > floor {
				floor = top
			}
		}
		if floor == 0 {
			continue
		}
		if _, err := seq.Advance(ctx, name, floor); err != nil {
			return storageError("sequence", tableSequences, fmt.Errorf("advance %q: %w", name, err))
		}
	}
	return nil
}
