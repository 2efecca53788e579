package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"salesportal/internal/domain"
	"salesportal/internal/store"
	"salesportal/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	catalogEntries  []domain.CatalogEntry
	summariesByID   map[string]domain.SalesSummary
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_ENCODER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	encoderPwd := envOr("SEED_ENCODER_PASSWORD", "encoder123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_ENCODER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_ENCODER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		storeID  string
		branch   string
	}{
		{"admin", adminPwd, "admin", "", ""},
		{"encoder", encoderPwd, "encoder", "S012", "MAIN"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			StoreID:      u.storeID,
			BranchLabel:  u.branch,
			Active:       true,
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		summariesByID:   make(map[string]domain.SalesSummary),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with dev accounts and a small catalog.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	s.catalogEntries = []domain.CatalogEntry{
		{Barcode: "4800011111111", Classification: domain.ClassificationRegular},
		{Barcode: "4800022222222", Classification: domain.ClassificationRegular},
		{Barcode: "4800033333333", Classification: domain.ClassificationNonRegular},
		{Barcode: "4800044444444", Classification: domain.ClassificationNonRegular},
	}
	return s
}

func (s *Store) ReplaceCatalog(_ context.Context, entries []domain.CatalogEntry, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replacement := make([]domain.CatalogEntry, len(entries))
	copy(replacement, entries)
	s.catalogEntries = replacement
	return len(replacement), nil
}

func (s *Store) ListCatalogEntries(_ context.Context) ([]domain.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CatalogEntry, len(s.catalogEntries))
	copy(out, s.catalogEntries)
	return out, nil
}

func (s *Store) ListCatalogPage(_ context.Context, offset, limit int) (*domain.CatalogPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 1
	}
	page := &domain.CatalogPage{Offset: offset, Limit: limit}
	if offset >= len(s.catalogEntries) {
		page.Entries = []domain.CatalogEntry{}
		return page, nil
	}
	end := offset + limit
	if end > len(s.catalogEntries) {
		end = len(s.catalogEntries)
	}
	page.Entries = make([]domain.CatalogEntry, end-offset)
	copy(page.Entries, s.catalogEntries[offset:end])
	page.HasMore = end < len(s.catalogEntries)
	return page, nil
}

func (s *Store) CountCatalogEntries(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.catalogEntries), nil
}

func summaryKeyEqual(a, b domain.SalesSummary) bool {
	return a.UserID == b.UserID &&
		a.StoreID == b.StoreID &&
		a.Branch == b.Branch &&
		a.Period.Equal(b.Period)
}

func (s *Store) UpsertSummary(_ context.Context, summary domain.SalesSummary) (*domain.SalesSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range s.summariesByID {
		if summaryKeyEqual(existing, summary) {
			summary.ID = id
			summary.CreatedAt = existing.CreatedAt
			summary.UpdatedAt = now
			s.summariesByID[id] = summary
			dup := summary
			return &dup, nil
		}
	}
	if summary.ID == "" {
		summary.ID = xid.New("sum")
	}
	summary.CreatedAt = now
	summary.UpdatedAt = now
	s.summariesByID[summary.ID] = summary
	dup := summary
	return &dup, nil
}

func (s *Store) ListSummaries(_ context.Context, filter domain.SummaryFilter) ([]domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SalesSummary, 0, len(s.summariesByID))
	for _, sum := range s.summariesByID {
		if filter.UserID != "" && sum.UserID != filter.UserID {
			continue
		}
		if filter.StoreID != "" && sum.StoreID != filter.StoreID {
			continue
		}
		if filter.Branch != "" && !strings.EqualFold(sum.Branch, filter.Branch) {
			continue
		}
		if !filter.From.IsZero() && sum.Period.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sum.Period.After(filter.To) {
			continue
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b domain.SalesSummary) int {
		if !a.Period.Equal(b.Period) {
			if a.Period.Before(b.Period) {
				return -1
			}
			return 1
		}
		if c := cmpString(a.StoreID, b.StoreID); c != 0 {
			return c
		}
		return cmpString(a.Branch, b.Branch)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetSummaryByID(_ context.Context, id string) (*domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.summariesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := sum
	return &dup, nil
}

func (s *Store) DeleteSummary(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.summariesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.summariesByID, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.PasswordHash) == "" {
		return store.ErrNotFound
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrUserExists
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "encoder"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByUsername[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := user
	return &dup, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	if strings.TrimSpace(passwordHash) == "" {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) UpdateUserBranch(_ context.Context, username string, storeID string, branchLabel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.StoreID = strings.TrimSpace(storeID)
	user.BranchLabel = strings.TrimSpace(branchLabel)
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}
