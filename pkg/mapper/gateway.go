package mapper

import (
	"context"
	"fmt"

	"github.com/ammar0144/guideresto/pkg/db"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"gorm.io/gorm/clause"
)

// gateway runs the row-level statements of one table. Every statement goes
// through the session connection and every failure comes back as a
// *StorageError naming the table.
type gateway[R record] struct {
	pc       *PersistenceContext
	table    string
	policy   KeyPolicy
	sequence string
	log      *log.Entry

	queries    tally.Counter
	statements tally.Counter
}

func newGateway[R record](pc *PersistenceContext, policy KeyPolicy, sequence string) *gateway[R] {
	var zero R
	table := zero.TableName()
	scope := pc.scope.Tagged(map[string]string{"table": table})
	return &gateway[R]{
		pc:         pc,
		table:      table,
		policy:     policy,
		sequence:   sequence,
		log:        pc.log.WithField("table", table),
		queries:    scope.Counter("queries"),
		statements: scope.Counter("statements"),
	}
}

// builder starts a statement on the gateway table
func (g *gateway[R]) builder() *db.Builder {
	return db.NewBuilder(g.table)
}

// selectMany runs a SELECT built by b and scans every row
func (g *gateway[R]) selectMany(ctx context.Context, b *db.Builder) ([]R, error) {
	conn, cancel, err := g.pc.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query, args := b.BuildSelect()
	g.queries.Inc(1)

	var rows []R
	if err := conn.Raw(query, args...).Scan(&rows).Error; err != nil {
		g.log.WithError(err).WithField("query", query).Warn("select failed")
		return nil, storageError("select", g.table, err)
	}
	return rows, nil
}

// selectOne runs a SELECT built by b and returns its first row, nil if none
func (g *gateway[R]) selectOne(ctx context.Context, b *db.Builder) (*R, error) {
	rows, err := g.selectMany(ctx, b.Limit(1))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// findByID loads the row with the given primary key, nil if none
func (g *gateway[R]) findByID(ctx context.Context, id int64) (*R, error) {
	return g.selectOne(ctx, g.builder().Where("id", db.Equal, id))
}

// selectIDs runs a SELECT of a single id column
func (g *gateway[R]) selectIDs(ctx context.Context, b *db.Builder) ([]int64, error) {
	conn, cancel, err := g.pc.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	query, args := b.BuildSelect()
	g.queries.Inc(1)

	var ids []int64
	if err := conn.Raw(query, args...).Scan(&ids).Error; err != nil {
		g.log.WithError(err).WithField("query", query).Warn("select failed")
		return nil, storageError("select", g.table, err)
	}
	return ids, nil
}

// count runs SELECT COUNT(*) over the conditions of b
func (g *gateway[R]) count(ctx context.Context, b *db.Builder) (int64, error) {
	conn, cancel, err := g.pc.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	query, args := b.BuildCount()
	g.queries.Inc(1)

	var n int64
	if err := conn.Raw(query, args...).Scan(&n).Error; err != nil {
		return 0, storageError("select", g.table, err)
	}
	return n, nil
}

// exists reports whether a row with the given primary key is stored
func (g *gateway[R]) exists(ctx context.Context, id int64) (bool, error) {
	n, err := g.count(ctx, g.builder().Where("id", db.Equal, id))
	return n > 0, err
}

// allocate returns the key for a new row under the PreAllocated policy and
// zero under GeneratedOnInsert
func (g *gateway[R]) allocate(ctx context.Context) (int64, error) {
	if g.policy != PreAllocated {
		return 0, nil
	}
	id, err := g.pc.sequence.Next(ctx, g.sequence)
	if err != nil {
		if IsStorageFailure(err) {
			return 0, err
		}
		return 0, storageError("sequence", g.table, fmt.Errorf("next %q: %w", g.sequence, err))
	}
	return id, nil
}

// insert stores row. Under GeneratedOnInsert the generated key is written
// back into the row.
func (g *gateway[R]) insert(ctx context.Context, row *R) error {
	conn, cancel, err := g.pc.Conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	g.statements.Inc(1)
	if err := conn.Omit(clause.Associations).Create(row).Error; err != nil {
		g.log.WithError(err).Warn("insert failed")
		return storageError("insert", g.table, err)
	}
	g.log.WithField("id", (*row).GetPrimaryKeyValue()).Debug("row inserted")
	return nil
}

// update sets columns to values on the row with the given key and reports
// whether a row matched
func (g *gateway[R]) update(ctx context.Context, id int64, columns []string, values ...interface{}) (bool, error) {
	query, args := g.builder().Where("id", db.Equal, id).BuildUpdate(columns)
	n, err := g.exec(ctx, "update", query, append(values, args...)...)
	if err != nil {
		return false, err
	}
	g.log.WithField("id", id).Debug("row updated")
	return n > 0, nil
}

// deleteWhere deletes the rows matched by b and returns how many went
func (g *gateway[R]) deleteWhere(ctx context.Context, b *db.Builder) (int64, error) {
	query, args := b.BuildDelete()
	return g.exec(ctx, "delete", query, args...)
}

// deleteByID deletes the row with the given key and reports whether it existed
func (g *gateway[R]) deleteByID(ctx context.Context, id int64) (bool, error) {
	n, err := g.deleteWhere(ctx, g.builder().Where("id", db.Equal, id))
	if err != nil {
		return false, err
	}
	g.log.WithField("id", id).Debug("row deleted")
	return n > 0, nil
}

func (g *gateway[R]) exec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	conn, cancel, err := g.pc.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	g.statements.Inc(1)
	res := conn.Exec(query, args...)
	if res.Error != nil {
		g.log.WithError(res.Error).WithField("query", query).Warn(op + " failed")
		return 0, storageError(op, g.table, res.Error)
	}
	return res.RowsAffected, nil
}
