package db

import (
	"fmt"
	"reflect"
	"strings"
)

// SQL Query Builder
// Mappers build every statement they issue through this builder so that all
// values travel as `?` parameters.
//
// SECURITY WARNING:
// Table and column names are NOT escaped. Only pass hardcoded identifiers;
// user input goes through condition values, which are parameterized.
//
// Example:
//   db.NewBuilder("restaurants r").
//       InnerJoin("cities c", "r.city_id = c.id").
//       Where("LOWER(c.name)", db.Like, "%neuch%").
//       BuildSelect()

// Operator represents SQL comparison operators
type Operator string

const (
	Equal     Operator = "="
	NotEqual  Operator = "!="
	Like      Operator = "LIKE"
	In        Operator = "IN"
	NotIn     Operator = "NOT IN"
	IsNull    Operator = "IS NULL"
	IsNotNull Operator = "IS NOT NULL"
)

// JoinType represents SQL JOIN types
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// LogicalOperator for combining conditions
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// Condition represents a WHERE clause condition
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// ConditionGroup represents grouped conditions with logical operators
type ConditionGroup struct {
	Conditions []interface{} // Condition or nested *ConditionGroup
	Operator   LogicalOperator
}

// JoinClause represents a JOIN operation
type JoinClause struct {
	Type      JoinType
	Table     string
	Condition string
}

// Builder helps build SQL statements for one table
type Builder struct {
	table      string
	selectCols []string
	distinct   bool
	joins      []JoinClause
	where      *ConditionGroup
	orderBy    []string
	limit      int
}

// NewBuilder creates a new query builder. The table may carry an alias
// ("restaurants r").
func NewBuilder(table string) *Builder {
	return &Builder{
		table:      table,
		selectCols: []string{"*"},
		where:      &ConditionGroup{Operator: And},
	}
}

// Select sets the columns to select
func (b *Builder) Select(cols ...string) *Builder {
	b.selectCols = cols
	return b
}

// Distinct enables DISTINCT selection
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Where adds a WHERE condition
func (b *Builder) Where(field string, operator Operator, value interface{}) *Builder {
	b.where.Conditions = append(b.where.Conditions, Condition{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return b
}

// WhereGroup adds a grouped WHERE condition
func (b *Builder) WhereGroup(operator LogicalOperator, fn func(*ConditionGroup)) *Builder {
	group := &ConditionGroup{Operator: operator}
	fn(group)
	b.where.Conditions = append(b.where.Conditions, group)
	return b
}

// Join adds a JOIN clause
func (b *Builder) Join(joinType JoinType, table, condition string) *Builder {
	b.joins = append(b.joins, JoinClause{
		Type:      joinType,
		Table:     table,
		Condition: condition,
	})
	return b
}

// InnerJoin adds an INNER JOIN
func (b *Builder) InnerJoin(table, condition string) *Builder {
	return b.Join(InnerJoin, table, condition)
}

// OrderBy adds an ORDER BY clause
func (b *Builder) OrderBy(field string, desc bool) *Builder {
	order := field + " ASC"
	if desc {
		order = field + " DESC"
	}
	b.orderBy = append(b.orderBy, order)
	return b
}

// Limit sets the LIMIT clause; negative values are normalized to 0
func (b *Builder) Limit(limit int) *Builder {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
	return b
}

// Where adds a condition to the group
func (g *ConditionGroup) Where(field string, operator Operator, value interface{}) *ConditionGroup {
	g.Conditions = append(g.Conditions, Condition{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return g
}

// BuildSelect builds a SELECT query
func (b *Builder) BuildSelect() (string, []interface{}) {
	var query strings.Builder
	var args []interface{}

	query.WriteString("SELECT ")
	if b.distinct {
		query.WriteString("DISTINCT ")
	}
	query.WriteString(strings.Join(b.selectCols, ", "))
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	for _, join := range b.joins {
		query.WriteString(" ")
		query.WriteString(string(join.Type))
		query.WriteString(" ")
		query.WriteString(join.Table)
		query.WriteString(" ON ")
		query.WriteString(join.Condition)
	}

	if whereSQL, whereArgs := buildConditionGroup(b.where); whereSQL != "" {
		query.WriteString(" WHERE ")
		query.WriteString(whereSQL)
		args = append(args, whereArgs...)
	}

	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limit > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}

	return query.String(), args
}

// BuildCount builds a SELECT COUNT(*) over the current conditions
func (b *Builder) BuildCount() (string, []interface{}) {
	counting := *b
	counting.selectCols = []string{"COUNT(*)"}
	counting.orderBy = nil
	counting.limit = 0
	return counting.BuildSelect()
}

// BuildUpdate builds an UPDATE query setting columns, restricted by the
// builder conditions. Values for the columns come first in the argument
// list, followed by the returned condition arguments.
func (b *Builder) BuildUpdate(columns []string) (string, []interface{}) {
	var query strings.Builder
	query.WriteString("UPDATE ")
	query.WriteString(b.table)
	query.WriteString(" SET ")

	setClauses := make([]string, len(columns))
	for i, col := range columns {
		setClauses[i] = col + " = ?"
	}
	query.WriteString(strings.Join(setClauses, ", "))

	whereSQL, args := buildConditionGroup(b.where)
	if whereSQL != "" {
		query.WriteString(" WHERE ")
		query.WriteString(whereSQL)
	}
	return query.String(), args
}

// BuildDelete builds a DELETE query restricted by the builder conditions
func (b *Builder) BuildDelete() (string, []interface{}) {
	query := "DELETE FROM " + b.table
	whereSQL, args := buildConditionGroup(b.where)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}
	return query, args
}

// buildConditionGroup builds SQL for a condition group with proper logical operators
func buildConditionGroup(group *ConditionGroup) (string, []interface{}) {
	if group == nil || len(group.Conditions) == 0 {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	for _, item := range group.Conditions {
		switch cond := item.(type) {
		case Condition:
			condSQL, condArgs := buildCondition(cond)
			conditions = append(conditions, condSQL)
			args = append(args, condArgs...)
		case *ConditionGroup:
			if groupSQL, groupArgs := buildConditionGroup(cond); groupSQL != "" {
				conditions = append(conditions, "("+groupSQL+")")
				args = append(args, groupArgs...)
			}
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " "+string(group.Operator)+" "), args
}

// buildCondition builds SQL for a single condition
func buildCondition(cond Condition) (string, []interface{}) {
	switch cond.Operator {
	case IsNull, IsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator), nil
	case In, NotIn:
		return buildInCondition(cond)
	default:
		return fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), []interface{}{cond.Value}
	}
}

// buildInCondition builds IN/NOT IN conditions with placeholder expansion.
// An empty list makes IN never match and NOT IN always match.
func buildInCondition(cond Condition) (string, []interface{}) {
	never, always := "1 = 0", "1 = 1"
	empty := never
	if cond.Operator == NotIn {
		empty = always
	}

	if cond.Value == nil {
		return empty, nil
	}

	v := reflect.ValueOf(cond.Value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Sprintf("%s %s (?)", cond.Field, cond.Operator), []interface{}{cond.Value}
	}

	length := v.Len()
	if length == 0 {
		return empty, nil
	}

	placeholders := make([]string, length)
	args := make([]interface{}, length)
	for i := 0; i < length; i++ {
		placeholders[i] = "?"
		args[i] = v.Index(i).Interface()
	}

	return fmt.Sprintf("%s %s (%s)", cond.Field, cond.Operator, strings.Join(placeholders, ", ")), args
}
