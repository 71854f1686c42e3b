package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryBuilder_NoFilters(t *testing.T) {
	qb := newQueryBuilder("SELECT id FROM users")
	qb.orderBy("created_at DESC")

	query, args := qb.build()
	assert.Equal(t, "SELECT id FROM users ORDER BY created_at DESC", query)
	assert.Empty(t, args)
}

func TestQueryBuilder_FiltersAndPaging(t *testing.T) {
	qb := newQueryBuilder("SELECT id FROM users")
	qb.where("role = %s", "admin")
	qb.where("status = %s", "Active")
	qb.orderBy("created_at DESC")
	qb.page(10, 20)

	query, args := qb.build()
	assert.Equal(t, "SELECT id FROM users WHERE role = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4", query)
	assert.Equal(t, []any{"admin", "Active", 10, 20}, args)
}
