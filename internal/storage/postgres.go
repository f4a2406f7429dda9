package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dbayan/storefront/internal/db"
	"github.com/dbayan/storefront/internal/repository"
)

type ItemRepository interface {
	GetAll(ctx context.Context) ([]*repository.ItemRow, error)
	GetByIDTx(ctx context.Context, tx db.Tx, id int) (*repository.ItemRow, error)
	UpdateStockTx(ctx context.Context, tx db.Tx, id, stock int) error
	Insert(ctx context.Context, item *repository.ItemRow) (*repository.ItemRow, error)
	Update(ctx context.Context, item *repository.ItemRow) error
	Delete(ctx context.Context, id int) error
}

type BanRepository interface {
	Add(ctx context.Context, email string) error
	Exists(ctx context.Context, email string) (bool, error)
}

// PostgresStore is the database-backed variant of the stock store. Order
// application runs inside a single transaction with row locks, so the
// read-check-decrement of every line is atomic.
type PostgresStore struct {
	db       db.DB
	itemRepo ItemRepository
	banRepo  BanRepository
	log      *zap.Logger
}

func NewPostgresStore(database db.DB, itemRepo ItemRepository, banRepo BanRepository, log *zap.Logger) *PostgresStore {
	return &PostgresStore{db: database, itemRepo: itemRepo, banRepo: banRepo, log: log}
}

// Load seeds the default catalog when the items table is empty.
func (s *PostgresStore) Load(ctx context.Context) error {
	items, err := s.itemRepo.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", ErrStorageUnavailable)
	}
	if len(items) > 0 {
		return nil
	}

	for _, it := range defaultCatalog() {
		row := &repository.ItemRow{Name: it.Name, Price: it.Price, Stock: it.Stock}
		if _, err := s.itemRepo.Insert(ctx, row); err != nil {
			return fmt.Errorf("seed catalog: %w", ErrStorageWriteFailed)
		}
	}
	s.log.Info("seeded default catalog into postgres")
	return nil
}

func (s *PostgresStore) Items(ctx context.Context) ([]Item, error) {
	rows, err := s.itemRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", ErrStorageUnavailable)
	}

	items := make([]Item, len(rows))
	for i, row := range rows {
		items[i] = Item{ID: row.ID, Name: row.Name, Price: row.Price, Stock: row.Stock}
	}
	return items, nil
}

func (s *PostgresStore) ApplyOrder(ctx context.Context, lines []OrderLine) (*OrderResult, error) {
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for item %d must be positive: %w", line.ItemID, ErrInvalidInput)
		}
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order transaction: %w", ErrStorageUnavailable)
	}
	defer func() {
		_ = tx.Rollback(context.Background())
	}()

	result := &OrderResult{}
	for _, line := range lines {
		row, err := s.itemRepo.GetByIDTx(ctx, tx, line.ItemID)
		if err != nil {
			if errors.Is(err, repository.ErrObjectNotFound) {
				result.Rejected = append(result.Rejected, RejectedLine{
					ItemID: line.ItemID,
					Reason: fmt.Sprintf("Item %d not found", line.ItemID),
				})
				continue
			}
			return nil, fmt.Errorf("lock item %d: %w", line.ItemID, ErrStorageUnavailable)
		}

		if row.Stock < line.Quantity {
			result.Rejected = append(result.Rejected, RejectedLine{
				ItemID: line.ItemID,
				Reason: fmt.Sprintf("%s (requested %d, available %d)", row.Name, line.Quantity, row.Stock),
			})
			continue
		}

		if err := s.itemRepo.UpdateStockTx(ctx, tx, row.ID, row.Stock-line.Quantity); err != nil {
			return nil, fmt.Errorf("decrement item %d: %w", row.ID, ErrStorageWriteFailed)
		}

		subtotal := row.Price * float64(line.Quantity)
		result.Fulfilled = append(result.Fulfilled, FulfilledLine{
			ItemID:    row.ID,
			Name:      row.Name,
			Quantity:  line.Quantity,
			UnitPrice: row.Price,
			Subtotal:  subtotal,
		})
		result.Total += subtotal
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", ErrStorageWriteFailed)
	}
	return result, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, upd ItemUpdate) (Item, error) {
	if err := validateItem(upd.Name, upd.Price, upd.Stock); err != nil {
		return Item{}, err
	}

	if upd.ID == nil {
		stored, err := s.itemRepo.Insert(ctx, &repository.ItemRow{
			Name: upd.Name, Price: upd.Price, Stock: upd.Stock,
		})
		if err != nil {
			return Item{}, fmt.Errorf("insert item: %w", ErrStorageWriteFailed)
		}
		return Item{ID: stored.ID, Name: stored.Name, Price: stored.Price, Stock: stored.Stock}, nil
	}

	err := s.itemRepo.Update(ctx, &repository.ItemRow{
		ID: *upd.ID, Name: upd.Name, Price: upd.Price, Stock: upd.Stock,
	})
	if err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return Item{}, fmt.Errorf("item %d: %w", *upd.ID, ErrNotFound)
		}
		return Item{}, fmt.Errorf("update item %d: %w", *upd.ID, ErrStorageWriteFailed)
	}
	return Item{ID: *upd.ID, Name: upd.Name, Price: upd.Price, Stock: upd.Stock}, nil
}

func (s *PostgresStore) Remove(ctx context.Context, id int) error {
	if err := s.itemRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrObjectNotFound) {
			return fmt.Errorf("item %d: %w", id, ErrNotFound)
		}
		return fmt.Errorf("delete item %d: %w", id, ErrStorageWriteFailed)
	}
	return nil
}

func (s *PostgresStore) IsBanned(ctx context.Context, email string) (bool, error) {
	norm := strings.ToLower(strings.TrimSpace(email))
	banned, err := s.banRepo.Exists(ctx, norm)
	if err != nil {
		return false, fmt.Errorf("check ban for %s: %w", norm, ErrStorageUnavailable)
	}
	return banned, nil
}

func (s *PostgresStore) Ban(ctx context.Context, email string) error {
	norm := strings.ToLower(strings.TrimSpace(email))
	if norm == "" {
		return fmt.Errorf("email must not be empty: %w", ErrInvalidInput)
	}
	if err := s.banRepo.Add(ctx, norm); err != nil {
		return fmt.Errorf("ban %s: %w", norm, ErrStorageWriteFailed)
	}
	return nil
}
