package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"github.com/dbayan/storefront/internal/db"
	"github.com/dbayan/storefront/internal/repository"
)

type ItemRepo struct {
	db db.DB
}

func NewItemRepo(db db.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

func (r *ItemRepo) GetAll(ctx context.Context) ([]*repository.ItemRow, error) {
	var items []*repository.ItemRow
	err := r.db.Select(ctx, &items, "SELECT id, name, price, stock FROM items ORDER BY id")
	return items, err
}

func (r *ItemRepo) GetByIDTx(ctx context.Context, tx db.Tx, id int) (*repository.ItemRow, error) {
	var item repository.ItemRow
	err := tx.Get(ctx, &item, "SELECT id, name, price, stock FROM items WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *ItemRepo) UpdateStockTx(ctx context.Context, tx db.Tx, id, stock int) error {
	tag, err := tx.Exec(ctx, "UPDATE items SET stock = $1 WHERE id = $2", stock, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

// Insert allocates the next free id atomically and returns the stored row.
func (r *ItemRepo) Insert(ctx context.Context, item *repository.ItemRow) (*repository.ItemRow, error) {
	row := r.db.ExecQueryRow(ctx, `
        INSERT INTO items (id, name, price, stock)
        VALUES ((SELECT COALESCE(MAX(id), 0) + 1 FROM items), $1, $2, $3)
        RETURNING id
    `, item.Name, item.Price, item.Stock)

	stored := *item
	if err := row.Scan(&stored.ID); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *ItemRepo) Update(ctx context.Context, item *repository.ItemRow) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE items
        SET name = $1, price = $2, stock = $3
        WHERE id = $4
    `, item.Name, item.Price, item.Stock, item.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *ItemRepo) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM items WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}
