package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/gateways"
	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
)

const (
	minReferenceLen = 6
	maxReferenceLen = 32
	clockSkew       = 5 * time.Minute
)

type ReceiptLookup interface {
	LookupReceipt(ctx context.Context, reference string) (*model.BankRecord, error)
}

type ReferenceChecker interface {
	ReferenceUsedByOtherForm(ctx context.Context, reference string, formID int64) (bool, error)
}

// ReceiptVerifier applies the payment heuristics to a submitted receipt.
// A nil bank lookup means heuristics only.
type ReceiptVerifier struct {
	fee    int64
	maxAge time.Duration
	refs   ReferenceChecker
	bank   ReceiptLookup
	now    func() time.Time
}

func NewReceiptVerifier(fee int64, maxAge time.Duration, refs ReferenceChecker, bank ReceiptLookup) *ReceiptVerifier {
	return &ReceiptVerifier{
		fee:    fee,
		maxAge: maxAge,
		refs:   refs,
		bank:   bank,
		now:    time.Now,
	}
}

// NormalizeReference trims, upper-cases and strips spaces and dashes.
func NormalizeReference(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	return strings.NewReplacer(" ", "", "-", "").Replace(ref)
}

// Verify returns nil when the form's receipt passes, a wrapped
// ErrReceiptRejected with the reason when it does not, or another error when
// a check could not run.
func (v *ReceiptVerifier) Verify(ctx context.Context, form *model.Form) error {
	ref := NormalizeReference(form.PaymentReference)
	if len(ref) < minReferenceLen || len(ref) > maxReferenceLen {
		return rejectReceipt("reference must be %d to %d characters", minReferenceLen, maxReferenceLen)
	}
	if form.PaymentAmount != v.fee {
		return rejectReceipt("amount %d does not match application fee %d", form.PaymentAmount, v.fee)
	}
	if form.PaymentDate == nil {
		return rejectReceipt("payment date is missing")
	}
	now := v.now()
	if form.PaymentDate.After(now.Add(clockSkew)) {
		return rejectReceipt("payment date is in the future")
	}
	if v.maxAge > 0 && now.Sub(*form.PaymentDate) > v.maxAge {
		return rejectReceipt("payment is older than %s", v.maxAge)
	}

	used, err := v.refs.ReferenceUsedByOtherForm(ctx, ref, form.ID)
	if err != nil {
		return fmt.Errorf("check reference reuse: %w", err)
	}
	if used {
		return rejectReceipt("reference %s was already used", ref)
	}

	if v.bank == nil {
		return nil
	}
	record, err := v.bank.LookupReceipt(ctx, ref)
	switch {
	case errors.Is(err, gateways.ErrReceiptNotFound):
		return rejectReceipt("bank has no record of reference %s", ref)
	case err != nil:
		logger.Warn("bank lookup unavailable, using heuristics only", "form_id", form.ID, "err", err)
		return nil
	}
	if record.Amount != form.PaymentAmount {
		return rejectReceipt("bank amount %d does not match receipt amount %d", record.Amount, form.PaymentAmount)
	}
	return nil
}

func rejectReceipt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrReceiptRejected, fmt.Sprintf(format, args...))
}
