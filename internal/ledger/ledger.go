// Package ledger computes account balance changes for committed transactions.
//
// The functions here are pure: they take balances in the smallest currency
// unit and return new balances. Persisting the result, locking the account
// rows and recording the effect on the transaction are the caller's job.
package ledger

import (
	"fmt"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/money"
)

// Kind is the type of a ledger transaction.
type Kind string

const (
	KindExpense    Kind = "expense"
	KindIncome     Kind = "income"
	KindTransfer   Kind = "transfer"
	KindWithdrawal Kind = "withdrawal"
)

// Valid reports whether k is a known transaction type.
func (k Kind) Valid() bool {
	switch k {
	case KindExpense, KindIncome, KindTransfer, KindWithdrawal:
		return true
	}
	return false
}

// NeedsDestination reports whether transactions of this kind move money to a second account.
func (k Kind) NeedsDestination() bool {
	return k == KindTransfer || k == KindWithdrawal
}

// Debits reports whether transactions of this kind take money out of the source account.
func (k Kind) Debits() bool {
	return k == KindExpense || k.NeedsDestination()
}

// Result holds the balances after an Apply or Reverse.
type Result struct {
	SourceBalance int64
	DestBalance   int64
	HasDest       bool
}

// Apply computes the balances after committing a transaction of the given
// kind and amount. When enforceSufficiency is set, debits larger than the
// source balance fail with INSUFFICIENT_FUNDS; a balance equal to the amount
// is sufficient. dest must be non-nil for transfers and withdrawals and is
// ignored for other kinds.
func Apply(kind Kind, amount, source int64, dest *int64, enforceSufficiency bool) (Result, error) {
	if err := check(kind, amount, dest); err != nil {
		return Result{}, err
	}

	if enforceSufficiency && kind.Debits() && source < amount {
		return Result{}, apperrors.WithMessage(apperrors.ErrInsufficientFunds,
			fmt.Sprintf("insufficient balance: %s available, %s required",
				money.Format(source), money.Format(amount)))
	}

	switch kind {
	case KindIncome:
		return Result{SourceBalance: source + amount}, nil
	case KindExpense:
		return Result{SourceBalance: source - amount}, nil
	default:
		return Result{SourceBalance: source - amount, DestBalance: *dest + amount, HasDest: true}, nil
	}
}

// Reverse computes the balances after undoing a previously applied
// transaction. It never checks sufficiency.
func Reverse(kind Kind, amount, source int64, dest *int64) (Result, error) {
	if err := check(kind, amount, dest); err != nil {
		return Result{}, err
	}

	switch kind {
	case KindIncome:
		return Result{SourceBalance: source - amount}, nil
	case KindExpense:
		return Result{SourceBalance: source + amount}, nil
	default:
		return Result{SourceBalance: source + amount, DestBalance: *dest - amount, HasDest: true}, nil
	}
}

func check(kind Kind, amount int64, dest *int64) error {
	if !kind.Valid() {
		return apperrors.WithMessage(apperrors.ErrInvalidTransactionType,
			fmt.Sprintf("unsupported transaction type %q", string(kind)))
	}
	if amount < 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must not be negative")
	}
	if kind.NeedsDestination() && dest == nil {
		return apperrors.WithMessage(apperrors.ErrInvalidDestination,
			fmt.Sprintf("%s requires a destination account", string(kind)))
	}
	return nil
}
