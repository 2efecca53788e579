package store

import (
	"context"
	"errors"

	"salesportal/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrUserExists = errors.New("user already exists")
)

type Repository interface {
	// ReplaceCatalog swaps the entire catalog for the given entries in one
	// transaction and returns how many rows were written.
	ReplaceCatalog(ctx context.Context, entries []domain.CatalogEntry, uploadedBy string) (int, error)
	ListCatalogEntries(ctx context.Context) ([]domain.CatalogEntry, error)
	ListCatalogPage(ctx context.Context, offset, limit int) (*domain.CatalogPage, error)
	CountCatalogEntries(ctx context.Context) (int, error)

	// UpsertSummary inserts the summary, or fully replaces the non-key fields
	// of the existing row with the same (UserID, StoreID, Branch, Period).
	UpsertSummary(ctx context.Context, summary domain.SalesSummary) (*domain.SalesSummary, error)
	ListSummaries(ctx context.Context, filter domain.SummaryFilter) ([]domain.SalesSummary, error)
	GetSummaryByID(ctx context.Context, id string) (*domain.SalesSummary, error)
	DeleteSummary(ctx context.Context, id string) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
	UpdateUserBranch(ctx context.Context, username string, storeID string, branchLabel string) error
}
