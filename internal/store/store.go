// Package store is a thin, typed adapter over the persisted ledger
// collections (accounts, categories, category_budgets, transactions).
//
// Every call carries an explicit timeout and maps driver failures to
// ErrStoreUnavailable. The adapter never retries: a retry of a partial step
// mid-chain would corrupt forward propagation, so retry policy belongs to the
// caller, which re-runs the whole logical operation.
package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "centavo/internal/errors"
	"centavo/internal/pagination"
)

// Store wraps a gorm connection with a per-call timeout.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

// New creates a Store. A zero timeout disables deadlines (used inside
// transactions, which inherit the caller's context).
func New(db *gorm.DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// DB exposes the underlying gorm handle for schema migration in tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) scoped(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// Transaction runs fn atomically. The Store passed to fn shares the caller's
// deadline; individual calls inside it are not re-scoped.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	db, cancel := s.scoped(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
	if err != nil {
		return wrap(err)
	}
	return nil
}

// wrap maps a gorm/driver error to the adapter's error surface. AppErrors
// raised inside a transaction pass through untouched.
func wrap(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrStoreUnavailable, err)
}

// All returns every record of T matching the optional conditions.
func All[T any](ctx context.Context, s *Store, conds ...interface{}) ([]T, error) {
	db, cancel := s.scoped(ctx)
	defer cancel()

	var records []T
	if err := db.Find(&records, conds...).Error; err != nil {
		return nil, wrap(err)
	}
	return records, nil
}

// Where returns every record of T matching the query, ordered if order is
// non-empty.
func Where[T any](ctx context.Context, s *Store, order, query string, args ...interface{}) ([]T, error) {
	db, cancel := s.scoped(ctx)
	defer cancel()

	q := db.Where(query, args...)
	if order != "" {
		q = q.Order(order)
	}
	var records []T
	if err := q.Find(&records).Error; err != nil {
		return nil, wrap(err)
	}
	return records, nil
}

// Find returns the record with the given primary key, or nil when absent.
func Find[T any](ctx context.Context, s *Store, id string) (*T, error) {
	return First[T](ctx, s, "id = ?", id)
}

// First returns the first record of T matching the query, or nil when absent.
func First[T any](ctx context.Context, s *Store, query string, args ...interface{}) (*T, error) {
	db, cancel := s.scoped(ctx)
	defer cancel()

	var record T
	err := db.Where(query, args...).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(err)
	}
	return &record, nil
}

// Create inserts a new record.
func Create[T any](ctx context.Context, s *Store, record *T) error {
	db, cancel := s.scoped(ctx)
	defer cancel()

	if err := db.Create(record).Error; err != nil {
		return wrap(err)
	}
	return nil
}

// Updates applies the given column updates to a record.
func Updates[T any](ctx context.Context, s *Store, record *T, fields map[string]interface{}) error {
	db, cancel := s.scoped(ctx)
	defer cancel()

	if err := db.Model(record).Updates(fields).Error; err != nil {
		return wrap(err)
	}
	return nil
}

// Delete removes a record (soft delete when the model supports it).
func Delete[T any](ctx context.Context, s *Store, record *T) error {
	db, cancel := s.scoped(ctx)
	defer cancel()

	if err := db.Delete(record).Error; err != nil {
		return wrap(err)
	}
	return nil
}

// DeleteWhere removes every record of T matching the query.
func DeleteWhere[T any](ctx context.Context, s *Store, query string, args ...interface{}) error {
	db, cancel := s.scoped(ctx)
	defer cancel()

	var model T
	if err := db.Where(query, args...).Delete(&model).Error; err != nil {
		return wrap(err)
	}
	return nil
}

// Count returns the number of records of T matching the query.
func Count[T any](ctx context.Context, s *Store, query string, args ...interface{}) (int64, error) {
	db, cancel := s.scoped(ctx)
	defer cancel()

	var model T
	var n int64
	if err := db.Model(&model).Where(query, args...).Count(&n).Error; err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// SumInt64 returns COALESCE(SUM(column), 0) over records of T matching the
// query. An empty query sums over the whole collection.
func SumInt64[T any](ctx context.Context, s *Store, column, query string, args ...interface{}) (int64, error) {
	db, cancel := s.scoped(ctx)
	defer cancel()

	var model T
	q := db.Model(&model).Select("COALESCE(SUM(" + column + "), 0)")
	if query != "" {
		q = q.Where(query, args...)
	}
	var total int64
	if err := q.Scan(&total).Error; err != nil {
		return 0, wrap(err)
	}
	return total, nil
}

// MaxString returns MAX(column) over records of T matching the query, or ""
// when no rows match.
func MaxString[T any](ctx context.Context, s *Store, column, query string, args ...interface{}) (string, error) {
	db, cancel := s.scoped(ctx)
	defer cancel()

	var model T
	var result *string
	err := db.Model(&model).
		Select("MAX(" + column + ")").
		Where(query, args...).
		Scan(&result).Error
	if err != nil {
		return "", wrap(err)
	}
	if result == nil {
		return "", nil
	}
	return *result, nil
}

// Page returns one page of records of T matching the query plus the total
// match count.
func Page[T any](ctx context.Context, s *Store, page pagination.PageRequest, order, query string, args ...interface{}) ([]T, int64, error) {
	db, cancel := s.scoped(ctx)
	defer cancel()

	var model T
	base := db.Model(&model)
	if query != "" {
		base = base.Where(query, args...)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, 0, wrap(err)
	}

	var records []T
	q := base.Scopes(pagination.Paginate(page))
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, 0, wrap(err)
	}
	return records, totalItems, nil
}
