package core

import (
	"context"
	"strings"
)

// Transactor runs fn inside a single unit of work. The transaction travels
// in the returned context; nested calls join the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses a `?ordering=-field,other` value keeping only the allowed fields.
func ParseOrdering(value string, allowed ...string) []DBOrdering {
	var ords []DBOrdering
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		ord := DBOrdering{Field: field, Ascending: true}
		if strings.HasPrefix(field, "-") {
			ord = DBOrdering{Field: field[1:]}
		}
		for _, fld := range allowed {
			if fld == ord.Field {
				ords = append(ords, ord)
				break
			}
		}
	}
	return ords
}

// Page bounds list queries. A zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}
