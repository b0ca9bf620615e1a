package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/clientdesk_backend/config"
	"bitbucket.org/mmdatafocus/clientdesk_backend/utils"
	"github.com/shopspring/decimal"
)

type NewPayment struct {
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate    *time.Time      `json:"payment_date"`
	PaymentMethod  string          `json:"payment_method"`
	TransactionRef string          `json:"transaction_ref"`
	ProcessingFee  decimal.Decimal `json:"processing_fee"`
}

// RecordPayment applies a payment to an invoice. Overpayment is rejected
// outright; the caller issues a credit note instead. A payment that settles
// the full amount moves the invoice to Paid and stamps PaymentDate, anything
// less moves it to Partial.
func RecordPayment(ctx context.Context, invoiceId int, input *NewPayment) (*Invoice, error) {

	if !input.Amount.IsPositive() {
		return nil, errors.New("payment amount must be positive")
	}
	if input.ProcessingFee.IsNegative() {
		return nil, errors.New("processing fee cannot be negative")
	}

	invoice, err := utils.FetchModel[Invoice](ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.CurrentStatus.isTerminal() {
		return nil, errors.New("invoice is in a terminal status")
	}
	if invoice.CurrentStatus == InvoiceStatusDraft {
		return nil, errors.New("draft invoices cannot receive payments")
	}

	newPaid := invoice.AmountPaid.Add(input.Amount)
	if newPaid.GreaterThan(invoice.Amount) {
		return nil, errors.New("payment exceeds invoice balance")
	}

	status := InvoiceStatusPartial
	paymentDate := invoice.PaymentDate
	if newPaid.GreaterThanOrEqual(invoice.Amount) {
		status = InvoiceStatusPaid
		when := time.Now()
		if input.PaymentDate != nil {
			when = *input.PaymentDate
		}
		paymentDate = &when
	}

	db := config.GetDB()
	ctx, flush := deferInvalidation(ctx)
	tx := db.Begin()
	defer func() { _ = tx.Rollback().Error }()

	updates := map[string]interface{}{
		"AmountPaid":    newPaid,
		"CurrentStatus": status,
		"PaymentDate":   paymentDate,
		"ProcessingFee": invoice.ProcessingFee.Add(input.ProcessingFee),
	}
	if input.PaymentMethod != "" {
		updates["PaymentMethod"] = input.PaymentMethod
	}
	if input.TransactionRef != "" {
		updates["TransactionRef"] = input.TransactionRef
	}

	// db action
	if err = tx.WithContext(ctx).Model(invoice).Updates(updates).Error; err != nil {
		return nil, utils.WrapDBError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.WrapDBError(err)
	}
	flush()
	return invoice, nil
}
