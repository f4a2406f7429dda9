package repository

import "errors"

var ErrObjectNotFound = errors.New("object not found")

type ItemRow struct {
	ID    int     `db:"id"`
	Name  string  `db:"name"`
	Price float64 `db:"price"`
	Stock int     `db:"stock"`
}
