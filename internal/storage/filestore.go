package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore keeps the catalog and the ban list in memory and mirrors them
// to a single JSON file, rewritten wholesale after every mutation.
type FileStore struct {
	path string
	log  *zap.Logger

	mu   sync.Mutex
	data storeData
}

func NewFileStore(path string, log *zap.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

// Load reads the persisted file. A missing file seeds the default catalog
// and persists it. A file that exists but cannot be decoded leaves the
// store with an empty catalog and reports ErrStorageUnavailable; the
// process keeps running.
func (s *FileStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = storeData{Items: defaultCatalog(), BannedEmails: []string{}}
			if err := s.persistLocked(); err != nil {
				return err
			}
			s.log.Info("seeded default catalog", zap.String("path", s.path), zap.Int("items", len(s.data.Items)))
			return nil
		}
		return fmt.Errorf("read %s: %w", s.path, ErrStorageUnavailable)
	}

	var data storeData
	if err := json.Unmarshal(raw, &data); err != nil {
		s.data = storeData{Items: []Item{}, BannedEmails: []string{}}
		s.log.Error("stock file is corrupt, starting with an empty catalog",
			zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("decode %s: %w", s.path, ErrStorageUnavailable)
	}

	s.data = data
	return nil
}

func (s *FileStore) persistLocked() error {
	payload, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode stock data: %w", ErrStorageWriteFailed)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		s.log.Error("failed to persist stock file", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("write %s: %w", s.path, ErrStorageWriteFailed)
	}
	return nil
}

// Items returns an order-preserving snapshot of the catalog.
func (s *FileStore) Items(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, len(s.data.Items))
	copy(items, s.data.Items)
	return items, nil
}

// ApplyOrder walks the requested lines, decrements stock where the full
// quantity is available and collects a reason for every line it cannot
// fulfil. The mutated catalog is persisted before success is reported; on
// a persist failure the in-memory catalog is left untouched.
func (s *FileStore) ApplyOrder(ctx context.Context, lines []OrderLine) (*OrderResult, error) {
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for item %d must be positive: %w", line.ItemID, ErrInvalidInput)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, len(s.data.Items))
	copy(items, s.data.Items)

	result := applyOrderLines(items, lines)

	if len(result.Fulfilled) > 0 {
		prev := s.data.Items
		s.data.Items = items
		if err := s.persistLocked(); err != nil {
			s.data.Items = prev
			return nil, err
		}
	}

	return result, nil
}

// applyOrderLines mutates items in place and is shared with tests; the
// caller owns locking and persistence.
func applyOrderLines(items []Item, lines []OrderLine) *OrderResult {
	result := &OrderResult{}
	for _, line := range lines {
		idx := -1
		for i := range items {
			if items[i].ID == line.ItemID {
				idx = i
				break
			}
		}
		if idx == -1 {
			result.Rejected = append(result.Rejected, RejectedLine{
				ItemID: line.ItemID,
				Reason: fmt.Sprintf("Item %d not found", line.ItemID),
			})
			continue
		}

		item := &items[idx]
		if item.Stock < line.Quantity {
			result.Rejected = append(result.Rejected, RejectedLine{
				ItemID: line.ItemID,
				Reason: fmt.Sprintf("%s (requested %d, available %d)", item.Name, line.Quantity, item.Stock),
			})
			continue
		}

		item.Stock -= line.Quantity
		subtotal := item.Price * float64(line.Quantity)
		result.Fulfilled = append(result.Fulfilled, FulfilledLine{
			ItemID:    item.ID,
			Name:      item.Name,
			Quantity:  line.Quantity,
			UnitPrice: item.Price,
			Subtotal:  subtotal,
		})
		result.Total += subtotal
	}
	return result
}

func validateItem(name string, price float64, stock int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("item name must not be empty: %w", ErrInvalidInput)
	}
	if price < 0 {
		return fmt.Errorf("item price must not be negative: %w", ErrInvalidInput)
	}
	if stock < 0 {
		return fmt.Errorf("item stock must not be negative: %w", ErrInvalidInput)
	}
	return nil
}

// Upsert appends a new item when no id is given, allocating max(id)+1, or
// replaces an existing item in place. An explicit id that is not in the
// catalog is rejected with ErrNotFound rather than inserted.
func (s *FileStore) Upsert(ctx context.Context, upd ItemUpdate) (Item, error) {
	if err := validateItem(upd.Name, upd.Price, upd.Stock); err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, len(s.data.Items))
	copy(items, s.data.Items)

	var item Item
	if upd.ID == nil {
		nextID := 1
		for _, it := range items {
			if it.ID >= nextID {
				nextID = it.ID + 1
			}
		}
		item = Item{ID: nextID, Name: upd.Name, Price: upd.Price, Stock: upd.Stock}
		items = append(items, item)
	} else {
		idx := -1
		for i := range items {
			if items[i].ID == *upd.ID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return Item{}, fmt.Errorf("item %d: %w", *upd.ID, ErrNotFound)
		}
		item = Item{ID: *upd.ID, Name: upd.Name, Price: upd.Price, Stock: upd.Stock}
		items[idx] = item
	}

	prev := s.data.Items
	s.data.Items = items
	if err := s.persistLocked(); err != nil {
		s.data.Items = prev
		return Item{}, err
	}
	return item, nil
}

// Remove deletes an item by id.
func (s *FileStore) Remove(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.data.Items {
		if s.data.Items[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("item %d: %w", id, ErrNotFound)
	}

	items := make([]Item, 0, len(s.data.Items)-1)
	items = append(items, s.data.Items[:idx]...)
	items = append(items, s.data.Items[idx+1:]...)

	prev := s.data.Items
	s.data.Items = items
	if err := s.persistLocked(); err != nil {
		s.data.Items = prev
		return err
	}
	return nil
}

// IsBanned reports whether the identifier is on the ban list. Matching is
// case-insensitive.
func (s *FileStore) IsBanned(ctx context.Context, email string) (bool, error) {
	norm := strings.ToLower(strings.TrimSpace(email))

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, banned := range s.data.BannedEmails {
		if banned == norm {
			return true, nil
		}
	}
	return false, nil
}

// Ban normalizes the identifier and adds it to the persisted ban list.
// Banning an already-banned identifier is a no-op.
func (s *FileStore) Ban(ctx context.Context, email string) error {
	norm := strings.ToLower(strings.TrimSpace(email))
	if norm == "" {
		return fmt.Errorf("email must not be empty: %w", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, banned := range s.data.BannedEmails {
		if banned == norm {
			return nil
		}
	}

	prev := s.data.BannedEmails
	s.data.BannedEmails = append(append([]string{}, prev...), norm)
	if err := s.persistLocked(); err != nil {
		s.data.BannedEmails = prev
		return err
	}
	return nil
}
