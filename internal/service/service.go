package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"salesportal/internal/catalog"
	"salesportal/internal/domain"
	"salesportal/internal/normalize"
	"salesportal/internal/recon"
	"salesportal/internal/session"
	"salesportal/internal/sheet"
	"salesportal/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

var ErrForbidden = errors.New("admin role required")

type Service struct {
	repo            store.Repository
	sessions        session.Store
	catalogPageSize int
	now             func() time.Time
}

func New(repo store.Repository, sessions session.Store, catalogPageSize int) *Service {
	if catalogPageSize <= 0 {
		catalogPageSize = 8000
	}
	return &Service{
		repo:            repo,
		sessions:        sessions,
		catalogPageSize: catalogPageSize,
		now:             time.Now,
	}
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

// ReplaceCatalog parses a catalog grid and swaps the stored catalog for it.
// Admin only. Duplicate barcodes are kept in file order so the classification
// index stays last-wins.
func (s *Service) ReplaceCatalog(ctx context.Context, g sheet.Grid) (domain.CatalogUploadResponse, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.CatalogUploadResponse{}, err
	}

	entries, err := normalize.Catalog(g)
	if err != nil {
		return domain.CatalogUploadResponse{}, err
	}
	if len(entries) == 0 {
		return domain.CatalogUploadResponse{}, fmt.Errorf("%w: catalog upload contains no entries", sheet.ErrEmptyFile)
	}

	n, err := s.repo.ReplaceCatalog(ctx, entries, actor.Username)
	if err != nil {
		return domain.CatalogUploadResponse{}, err
	}
	log.Printf("[service] catalog replaced by %s: %d entries", actor.Username, n)
	return domain.CatalogUploadResponse{Entries: n, ReplacedAt: s.now().UTC()}, nil
}

func (s *Service) CatalogPage(ctx context.Context, offset, limit int) (*domain.CatalogPage, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.catalogPageSize {
		limit = s.catalogPageSize
	}
	page, err := s.repo.ListCatalogPage(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	page.Total, err = s.repo.CountCatalogEntries(ctx)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// UploadItemSales normalizes an item-sales grid into the caller's session.
// Validation gates run against whatever else is staged; a failed gate
// discards the whole session so the user restarts from a clean slate.
func (s *Service) UploadItemSales(ctx context.Context, fileName string, g sheet.Grid) (*domain.SessionPreview, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.repo.ListCatalogEntries(ctx)
	if err != nil {
		return nil, err
	}
	res, err := normalize.Items(g, catalog.Build(entries))
	if err != nil {
		return nil, err
	}

	sess, err := s.loadSession(ctx, actor.Username)
	if err != nil {
		return nil, err
	}
	sess.Items = &domain.ItemUpload{
		FileName:   fileName,
		Branch:     res.Branch,
		Period:     res.Period,
		Rows:       res.Rows,
		Unmatched:  res.Unmatched,
		UploadedAt: s.now().UTC(),
	}
	return s.validateAndStore(ctx, actor, sess)
}

// UploadPayments normalizes a payment grid into the caller's session under
// the same gate rules as UploadItemSales.
func (s *Service) UploadPayments(ctx context.Context, fileName string, g sheet.Grid) (*domain.SessionPreview, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	res, err := normalize.Payments(g)
	if err != nil {
		return nil, err
	}

	sess, err := s.loadSession(ctx, actor.Username)
	if err != nil {
		return nil, err
	}
	sess.Payments = &domain.PaymentUpload{
		FileName:   fileName,
		Branch:     res.Branch,
		Period:     res.Period,
		Rows:       res.Rows,
		UploadedAt: s.now().UTC(),
	}
	return s.validateAndStore(ctx, actor, sess)
}

func (s *Service) loadSession(ctx context.Context, username string) (*domain.UploadSession, error) {
	sess, ok, err := s.sessions.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if !ok {
		sess = &domain.UploadSession{Username: username}
	}
	return sess, nil
}

func (s *Service) validateAndStore(ctx context.Context, actor domain.Actor, sess *domain.UploadSession) (*domain.SessionPreview, error) {
	userBranch := domain.BranchToken(actor.StoreID, actor.BranchLabel)
	if err := recon.ValidateSession(sess, userBranch, s.now()); err != nil {
		// cross-file failures void the whole staged pair
		if derr := s.sessions.Delete(ctx, actor.Username); derr != nil {
			log.Printf("[service] WARN: failed to clear session for %s: %v", actor.Username, derr)
		}
		return nil, err
	}

	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.Put(ctx, actor.Username, sess); err != nil {
		return nil, err
	}
	return s.preview(sess), nil
}

func (s *Service) preview(sess *domain.UploadSession) *domain.SessionPreview {
	p := &domain.SessionPreview{
		Items:    sess.Items,
		Payments: sess.Payments,
	}
	if sess.Items != nil {
		t := recon.AggregateItems(sess.Items.Rows)
		p.ItemTotals = &t
		p.UnmatchedCount = len(sess.Items.Unmatched)
	}
	if sess.Payments != nil {
		t := recon.AggregatePayments(sess.Payments.Rows)
		p.PaymentTotals = &t
	}
	p.Ready = sess.Items != nil && sess.Payments != nil && p.UnmatchedCount == 0
	return p
}

func (s *Service) SessionPreview(ctx context.Context) (*domain.SessionPreview, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	sess, ok, err := s.sessions.Get(ctx, actor.Username)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &domain.SessionPreview{}, nil
	}
	return s.preview(sess), nil
}

func (s *Service) ClearSession(ctx context.Context) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	return s.sessions.Delete(ctx, actor.Username)
}

// Submit turns the staged session into a persisted SalesSummary. Submission
// requires both files, zero unmatched rows and an extractable period. The
// reconciliation outcome is advisory and never blocks the write. On success
// the session is cleared.
func (s *Service) Submit(ctx context.Context) (*domain.SalesSummary, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	sess, ok, err := s.sessions.Get(ctx, actor.Username)
	if err != nil {
		return nil, err
	}
	if !ok || sess.Items == nil || sess.Payments == nil {
		return nil, recon.ErrSessionIncomplete
	}
	if len(sess.Items.Unmatched) > 0 {
		return nil, recon.ErrUnmatchedRows
	}

	userBranch := domain.BranchToken(actor.StoreID, actor.BranchLabel)
	if err := recon.ValidateSession(sess, userBranch, s.now()); err != nil {
		return nil, err
	}

	period := sess.Payments.Period
	if period == nil {
		period = sess.Items.Period
	}
	if period == nil {
		return nil, recon.ErrPeriodMissing
	}

	itemTotals := recon.AggregateItems(sess.Items.Rows)
	payTotals := recon.AggregatePayments(sess.Payments.Rows)
	outcome := recon.Reconcile(itemTotals.TotalAmt, payTotals.TotalPayments)
	if !outcome.AmountsMatch {
		log.Printf("[service] reconciliation variance for %s %s: %s by %.2f",
			actor.Username, period.Label, outcome.Direction, outcome.Variance)
	}

	branch := sess.Items.Branch
	if branch == "" {
		branch = sess.Payments.Branch
	}
	if branch == "" {
		branch = userBranch
	}

	summary := domain.SalesSummary{
		UserID:      actor.Username,
		StoreID:     actor.StoreID,
		Branch:      branch,
		Period:      period.Date,
		PeriodLabel: period.Label,

		RegularQty:    itemTotals.RegularQty,
		RegularAmt:    itemTotals.RegularAmt,
		NonRegularQty: itemTotals.NonRegularQty,
		NonRegularAmt: itemTotals.NonRegularAmt,
		TotalQtySold:  itemTotals.TotalQtySold,
		TotalAmt:      itemTotals.TotalAmt,

		CashCheck:     payTotals.CashCheck,
		Charge:        payTotals.Charge,
		GiftCheck:     payTotals.GiftCheck,
		CreditNote:    payTotals.CreditNote,
		TotalPayments: payTotals.TotalPayments,

		AmountsMatch:     outcome.AmountsMatch,
		Variance:         outcome.Variance,
		TransactionCount: payTotals.TransactionCount,
		HeadCount:        payTotals.HeadCount,
	}

	saved, err := s.repo.UpsertSummary(ctx, summary)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, actor.Username); err != nil {
		log.Printf("[service] WARN: failed to clear session for %s after submit: %v", actor.Username, err)
	}
	return saved, nil
}

// ListSummaries returns summaries visible to the caller. Encoders only see
// their own rows; admins see everything the filter allows.
func (s *Service) ListSummaries(ctx context.Context, filter domain.SummaryFilter) ([]domain.SalesSummary, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role != "admin" {
		filter.UserID = actor.Username
	}
	return s.repo.ListSummaries(ctx, filter)
}

// GetSummary returns one persisted summary by id. Admin only, like deletion:
// encoders reach their rows through the scoped listing.
func (s *Service) GetSummary(ctx context.Context, id string) (*domain.SalesSummary, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, store.ErrNotFound
	}
	return s.repo.GetSummaryByID(ctx, id)
}

func (s *Service) DeleteSummary(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return store.ErrNotFound
	}
	return s.repo.DeleteSummary(ctx, id)
}
