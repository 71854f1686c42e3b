package repository

import (
	"fmt"
	"strings"
)

// queryBuilder assembles positional-argument SQL for optional filters.
type queryBuilder struct {
	base    string
	clauses []string
	args    []any
	order   string
	limit   int
	offset  int
}

func newQueryBuilder(base string) *queryBuilder {
	return &queryBuilder{base: base}
}

// where appends a clause; each %s in format is replaced by the next placeholder.
func (q *queryBuilder) where(format string, args ...any) {
	placeholders := make([]any, len(args))
	for i, arg := range args {
		q.args = append(q.args, arg)
		placeholders[i] = fmt.Sprintf("$%d", len(q.args))
	}
	q.clauses = append(q.clauses, fmt.Sprintf(format, placeholders...))
}

func (q *queryBuilder) orderBy(order string) {
	q.order = order
}

func (q *queryBuilder) page(limit, offset int) {
	q.limit = limit
	q.offset = offset
}

func (q *queryBuilder) build() (string, []any) {
	var sb strings.Builder
	sb.WriteString(q.base)
	if len(q.clauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.clauses, " AND "))
	}
	if q.order != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(q.order)
	}
	args := q.args
	if q.limit > 0 {
		args = append(args, q.limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if q.offset > 0 {
		args = append(args, q.offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}
	return sb.String(), args
}
