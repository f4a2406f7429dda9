package postgresql

import (
	"context"

	"github.com/dbayan/storefront/internal/db"
)

type BanRepo struct {
	db db.DB
}

func NewBanRepo(db db.DB) *BanRepo {
	return &BanRepo{db: db}
}

func (r *BanRepo) Add(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO banned_emails (email) VALUES ($1) ON CONFLICT (email) DO NOTHING", email)
	return err
}

func (r *BanRepo) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.Get(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM banned_emails WHERE email = $1)", email)
	return exists, err
}
