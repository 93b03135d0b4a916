package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelectWithJoinAndLike(t *testing.T) {
	query, args := NewBuilder("restaurants r").
		Select("r.id").
		InnerJoin("cities c", "r.city_id = c.id").
		Where("LOWER(c.name)", Like, "%neuch%").
		OrderBy("r.name", false).
		BuildSelect()

	assert.Equal(t, "SELECT r.id FROM restaurants r INNER JOIN cities c ON r.city_id = c.id WHERE LOWER(c.name) LIKE ? ORDER BY r.name ASC", query)
	assert.Equal(t, []interface{}{"%neuch%"}, args)
}

func TestBuildSelectGroupsAndLimit(t *testing.T) {
	query, args := NewBuilder("basic_evaluations").
		Where("restaurant_id", Equal, int64(4)).
		WhereGroup(Or, func(g *ConditionGroup) {
			g.Where("liked", Equal, true).Where("ip_address", IsNull, nil)
		}).
		Limit(1).
		BuildSelect()

	assert.Equal(t, "SELECT * FROM basic_evaluations WHERE restaurant_id = ? AND (liked = ? OR ip_address IS NULL) LIMIT 1", query)
	assert.Equal(t, []interface{}{int64(4), true}, args)
}

func TestBuildCountDropsOrderAndLimit(t *testing.T) {
	b := NewBuilder("grades").Where("evaluation_id", Equal, int64(2)).OrderBy("id", true).Limit(5)
	query, args := b.BuildCount()

	assert.Equal(t, "SELECT COUNT(*) FROM grades WHERE evaluation_id = ?", query)
	assert.Equal(t, []interface{}{int64(2)}, args)

	// the original builder is untouched
	query, _ = b.BuildSelect()
	assert.Equal(t, "SELECT * FROM grades WHERE evaluation_id = ? ORDER BY id DESC LIMIT 5", query)
}

func TestBuildInConditions(t *testing.T) {
	query, args := NewBuilder("grades").
		Where("evaluation_id", Equal, int64(1)).
		Where("id", NotIn, []int64{3, 4}).
		BuildDelete()
	assert.Equal(t, "DELETE FROM grades WHERE evaluation_id = ? AND id NOT IN (?, ?)", query)
	assert.Equal(t, []interface{}{int64(1), int64(3), int64(4)}, args)

	query, args = NewBuilder("grades").Where("id", NotIn, []int64{}).BuildDelete()
	assert.Equal(t, "DELETE FROM grades WHERE 1 = 1", query)
	assert.Empty(t, args)

	query, _ = NewBuilder("grades").Where("id", In, []int64{}).BuildSelect()
	assert.Equal(t, "SELECT * FROM grades WHERE 1 = 0", query)
}

func TestBuildUpdate(t *testing.T) {
	query, args := NewBuilder("cities").
		Where("id", Equal, int64(9)).
		BuildUpdate([]string{"zip_code", "name"})

	assert.Equal(t, "UPDATE cities SET zip_code = ?, name = ? WHERE id = ?", query)
	assert.Equal(t, []interface{}{int64(9)}, args)
}

func TestNegativeLimitIsIgnored(t *testing.T) {
	query, _ := NewBuilder("cities").Limit(-3).BuildSelect()
	assert.Equal(t, "SELECT * FROM cities", query)
}
