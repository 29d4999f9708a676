package debt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeancarlo3213/ferrefactura/internal/backend"
	"github.com/jeancarlo3213/ferrefactura/internal/draft"
	"github.com/jeancarlo3213/ferrefactura/internal/money"
	"github.com/jeancarlo3213/ferrefactura/internal/obs"
	"github.com/jeancarlo3213/ferrefactura/internal/session"
)

// SettledComment marks a debt record as fully paid. Records carrying it are
// skipped when folding new debt into a debtor's balance.
const SettledComment = "PAGADO"

// DefaultComment is applied when the caller provides no comment.
const DefaultComment = "Pendiente"

// Service records store credit against the backend debt registry. It shares
// the draft calculator with billing: the same staged lines become a debt
// instead of an invoice.
type Service struct {
	Backend *backend.Client
	Logger  zerolog.Logger
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Description builds the human-readable debt line from the draft: date plus
// each product with its bulk and unit quantities.
func Description(d *draft.Draft, now time.Time) string {
	items := make([]string, 0, len(d.Lines))
	for _, line := range d.Lines {
		var parts []string
		if line.BulkQty > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d qq", line.Product.Name, line.BulkQty))
		}
		if line.UnitQty > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d u", line.Product.Name, line.UnitQty))
		}
		items = append(items, strings.Join(parts, " + "))
	}
	return fmt.Sprintf("%s - %s", now.Format("02/01/2006"), strings.Join(items, ", "))
}

// RecordForNewDebtor registers the debtor and opens their first debt record.
func (s *Service) RecordForNewDebtor(ctx context.Context, sess *session.Session, d *draft.Draft, debtorName, comment string, amount money.Amount) (*backend.DebtRecord, error) {
	debtor, err := s.Backend.CreateDebtor(ctx, sess, strings.TrimSpace(debtorName))
	if err != nil {
		obs.DebtRecordTotal.WithLabelValues("debtor_failed").Inc()
		return nil, fmt.Errorf("create debtor: %w", err)
	}
	return s.createRecord(ctx, sess, d, debtor.ID, comment, amount)
}

// RecordForDebtor adds debt for an existing debtor. When the debtor has an
// active unsettled record the new debt is folded into it: the description is
// appended and the amounts are summed. Otherwise a fresh record opens.
func (s *Service) RecordForDebtor(ctx context.Context, sess *session.Session, d *draft.Draft, debtorID int64, comment string, amount money.Amount) (*backend.DebtRecord, error) {
	records, err := s.Backend.ListDebtRecords(ctx, sess)
	if err != nil {
		obs.DebtRecordTotal.WithLabelValues("list_failed").Inc()
		return nil, fmt.Errorf("list debt records: %w", err)
	}
	active := activeRecord(records, debtorID)
	if active == nil {
		return s.createRecord(ctx, sess, d, debtorID, comment, amount)
	}

	desc := active.Description + "\n" + Description(d, s.now())
	total := money.V(active.Amount.Amount + amount)
	rec, err := s.Backend.UpdateDebtRecord(ctx, sess, active.ID, backend.DebtRecordPatch{
		Description: &desc,
		Amount:      &total,
	})
	if err != nil {
		obs.DebtRecordTotal.WithLabelValues("merge_failed").Inc()
		return nil, fmt.Errorf("merge debt record %d: %w", active.ID, err)
	}
	obs.DebtRecordTotal.WithLabelValues("merged").Inc()
	s.Logger.Info().Int64("debtor_id", debtorID).Int64("record_id", rec.ID).Msg("debt_merged")
	return rec, nil
}

// RegisterPayment applies a payment against a debt record. When the balance
// reaches zero the record is marked settled.
func (s *Service) RegisterPayment(ctx context.Context, sess *session.Session, record backend.DebtRecord, paid money.Amount) (*backend.DebtRecord, error) {
	remaining := record.Amount.Amount - paid
	if remaining < 0 {
		remaining = 0
	}
	patch := backend.DebtRecordPatch{Amount: ptr(money.V(remaining))}
	if remaining == 0 {
		patch.Comment = ptr(SettledComment)
	}
	rec, err := s.Backend.UpdateDebtRecord(ctx, sess, record.ID, patch)
	if err != nil {
		obs.DebtRecordTotal.WithLabelValues("payment_failed").Inc()
		return nil, fmt.Errorf("register payment on record %d: %w", record.ID, err)
	}
	obs.DebtRecordTotal.WithLabelValues("payment").Inc()
	return rec, nil
}

func (s *Service) createRecord(ctx context.Context, sess *session.Session, d *draft.Draft, debtorID int64, comment string, amount money.Amount) (*backend.DebtRecord, error) {
	if strings.TrimSpace(comment) == "" {
		comment = DefaultComment
	}
	rec, err := s.Backend.CreateDebtRecord(ctx, sess, backend.NewDebtRecord{
		DebtorID:    debtorID,
		Description: Description(d, s.now()),
		Amount:      money.V(amount),
		Comment:     comment,
	})
	if err != nil {
		obs.DebtRecordTotal.WithLabelValues("create_failed").Inc()
		return nil, fmt.Errorf("create debt record: %w", err)
	}
	obs.DebtRecordTotal.WithLabelValues("created").Inc()
	s.Logger.Info().Int64("debtor_id", debtorID).Int64("record_id", rec.ID).Msg("debt_recorded")
	return rec, nil
}

// activeRecord returns the debtor's first unsettled record with a positive
// balance, or nil when every record is settled.
func activeRecord(records []backend.DebtRecord, debtorID int64) *backend.DebtRecord {
	for i := range records {
		rec := &records[i]
		if rec.DebtorID != debtorID {
			continue
		}
		if rec.Comment != SettledComment && rec.Amount.Amount > 0 {
			return rec
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
