package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finpanel/internal/config"
	"finpanel/internal/logger"
	"finpanel/internal/models"
	"finpanel/internal/testutil"
)

func TestRunDue(t *testing.T) {
	ctx := context.Background()
	morning := time.Date(2026, 3, 10, 0, 5, 0, 0, time.UTC)

	t.Run("partial_failure_leaves_others_executed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db, testOptions())
		svc := NewSchedulerService(db, accounts, testOptions())

		rich := testutil.CreateTestAccountWithDeposit(t, db, 10000)
		poor := testutil.CreateTestAccountWithDeposit(t, db, 1000)

		first := testutil.CreateTestScheduledTransaction(t, db, rich.ID, models.TransactionTypeExpense, 3000, morning.Add(8*time.Hour))
		second := testutil.CreateTestScheduledTransaction(t, db, poor.ID, models.TransactionTypeExpense, 5000, morning.Add(9*time.Hour))
		third := testutil.CreateTestScheduledTransaction(t, db, rich.ID, models.TransactionTypeExpense, 2000, morning.Add(10*time.Hour))

		report, err := svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)

		if report.Total != 3 || report.Executed != 2 {
			t.Errorf("expected 3 candidates and 2 executed, got %d/%d", report.Total, report.Executed)
		}
		if len(report.Failures) != 1 || report.Failures[0].Code != second.Code {
			t.Fatalf("expected exactly %s to fail, got %+v", second.Code, report.Failures)
		}
		if report.Failures[0].Reason != "INSUFFICIENT_FUNDS" {
			t.Errorf("expected INSUFFICIENT_FUNDS, got %s", report.Failures[0].Reason)
		}
		if report.Succeeded() {
			t.Error("report with failures should not succeed")
		}

		for _, tc := range []struct {
			tx        *models.Transaction
			scheduled bool
		}{{first, false}, {second, true}, {third, false}} {
			var stored models.Transaction
			db.Where("id = ?", tc.tx.ID).First(&stored)
			if stored.IsScheduled != tc.scheduled {
				t.Errorf("%s: expected is_scheduled=%v, got %v", stored.Code, tc.scheduled, stored.IsScheduled)
			}
			if stored.BalanceEffectApplied == tc.scheduled {
				t.Errorf("%s: unexpected balance_effect_applied=%v", stored.Code, stored.BalanceEffectApplied)
			}
		}

		if got := testutil.Deposit(t, db, rich.ID); got != 5000 {
			t.Errorf("expected rich account at 5000, got %d", got)
		}
		if got := testutil.Deposit(t, db, poor.ID); got != 1000 {
			t.Errorf("expected poor account unchanged at 1000, got %d", got)
		}
	})

	t.Run("only_today_and_not_drafts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db, testOptions())
		svc := NewSchedulerService(db, accounts, testOptions())
		account := testutil.CreateTestAccountWithDeposit(t, db, 10000)

		testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 100, morning.AddDate(0, 0, 1))
		testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 100, morning.AddDate(0, 0, -1))
		draft := testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 100, morning.Add(time.Hour))
		db.Model(draft).Update("is_draft", true)
		due := testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeIncome, 500, morning.Add(23*time.Hour))

		report, err := svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)

		if report.Total != 1 || report.Executed != 1 {
			t.Errorf("expected only %s to run, got total=%d executed=%d", due.Code, report.Total, report.Executed)
		}
		if got := testutil.Deposit(t, db, account.ID); got != 10500 {
			t.Errorf("expected deposit 10500, got %d", got)
		}
	})

	t.Run("second_run_is_a_no_op", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db, testOptions())
		svc := NewSchedulerService(db, accounts, testOptions())
		account := testutil.CreateTestAccountWithDeposit(t, db, 1000)
		testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 400, morning.Add(time.Hour))

		_, err := svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)
		report, err := svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)

		if report.Total != 0 {
			t.Errorf("expected nothing left to run, got %d", report.Total)
		}
		if got := testutil.Deposit(t, db, account.ID); got != 600 {
			t.Errorf("expected a single debit leaving 600, got %d", got)
		}
	})

	t.Run("income_runs_before_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db, testOptions())
		svc := NewSchedulerService(db, accounts, testOptions())
		account := testutil.CreateTestAccount(t, db)

		testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 700, morning.Add(time.Hour))
		testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeIncome, 1000, morning.Add(2*time.Hour))

		report, err := svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)

		if !report.Succeeded() {
			t.Errorf("expected income to fund the expense, got failures %+v", report.Failures)
		}
		if got := testutil.Deposit(t, db, account.ID); got != 300 {
			t.Errorf("expected deposit 300, got %d", got)
		}
	})

	t.Run("notify_only_when_there_were_candidates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		opts := testOptions()
		opts.Config = config.New(map[string]string{config.KeyNotifyOnScheduledRun: "true"})
		accounts := NewAccountService(db, opts)
		svc := NewSchedulerService(db, accounts, opts)

		report, err := svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)
		if report.ShouldNotify {
			t.Error("an empty run should not notify")
		}

		account := testutil.CreateTestAccountWithDeposit(t, db, 1000)
		testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 10, morning.Add(time.Hour))
		report, err = svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)
		if !report.ShouldNotify {
			t.Error("expected a notification for a run with candidates")
		}
	})

	t.Run("skips_are_not_logged_as_errors", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		restore := logger.Replace(zap.New(core))
		defer restore()

		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db, testOptions())
		svc := NewSchedulerService(db, accounts, testOptions())
		account := testutil.CreateTestAccount(t, db)
		testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 10, morning.Add(time.Hour))

		_, err := svc.RunDue(ctx, morning)
		testutil.AssertNoError(t, err)

		if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
			t.Errorf("expected no error-level logs, got %d", n)
		}
		if logs.FilterMessage("scheduled transaction skipped").Len() != 1 {
			t.Error("expected the skip to be logged at info level")
		}
	})

	t.Run("future_day_is_refused", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db, testOptions())
		svc := NewSchedulerService(db, accounts, testOptions())

		account := testutil.CreateTestAccountWithDeposit(t, db, 1000)
		later := testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 400, morning.AddDate(0, 0, 5))
		goal := testutil.CreateTestGoal(t, db, 1000, 100)
		db.Model(goal).Update("target_date", morning.AddDate(0, 0, 2))

		report, err := svc.RunDue(ctx, morning.AddDate(0, 0, 5))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		if report != nil {
			t.Errorf("expected no report, got %+v", report)
		}

		var stored models.Transaction
		db.Where("id = ?", later.ID).First(&stored)
		if !stored.IsScheduled || stored.BalanceEffectApplied {
			t.Error("future scheduled transaction must not execute early")
		}
		testutil.AssertDeposits(t, db, map[string]int64{account.ID: 1000})

		var storedGoal models.PaymentGoal
		db.Where("id = ?", goal.ID).First(&storedGoal)
		if storedGoal.Status != models.GoalStatusOngoing {
			t.Errorf("goal must stay ongoing, got %s", storedGoal.Status)
		}
	})

	t.Run("past_day_is_allowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		accounts := NewAccountService(db, testOptions())
		svc := NewSchedulerService(db, accounts, testOptions())

		account := testutil.CreateTestAccountWithDeposit(t, db, 1000)
		missed := testutil.CreateTestScheduledTransaction(t, db, account.ID, models.TransactionTypeExpense, 400, morning.AddDate(0, 0, -1))

		report, err := svc.RunDue(ctx, morning.AddDate(0, 0, -1))
		testutil.AssertNoError(t, err)
		if report.Executed != 1 {
			t.Fatalf("expected the missed day to execute, got %+v", report)
		}
		var stored models.Transaction
		db.Where("id = ?", missed.ID).First(&stored)
		if stored.IsScheduled {
			t.Error("expected transaction to be executed")
		}
	})
}

func TestMarkOverdueGoals(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewSchedulerService(db, NewAccountService(db, testOptions()), testOptions())

	past := testNow.AddDate(0, 0, -2)
	future := testNow.AddDate(0, 1, 0)

	late := testutil.CreateTestGoal(t, db, 1000, 100)
	db.Model(late).Update("target_date", past)
	onTime := testutil.CreateTestGoal(t, db, 1000, 100)
	db.Model(onTime).Update("target_date", future)
	done := testutil.CreateTestGoal(t, db, 1000, 1000)
	db.Model(done).Update("target_date", past)

	_, err := svc.MarkOverdueGoals(ctx, testNow.AddDate(0, 2, 0))
	testutil.AssertAppError(t, err, "INVALID_INPUT")
	var untouched models.PaymentGoal
	db.Where("id = ?", onTime.ID).First(&untouched)
	if untouched.Status != models.GoalStatusOngoing {
		t.Errorf("a future day must not flip goals, got %s", untouched.Status)
	}

	changed, err := svc.MarkOverdueGoals(ctx, testNow)
	testutil.AssertNoError(t, err)
	if changed != 1 {
		t.Errorf("expected 1 goal marked overdue, got %d", changed)
	}

	var stored models.PaymentGoal
	db.Where("id = ?", late.ID).First(&stored)
	if stored.Status != models.GoalStatusOverdue {
		t.Errorf("expected overdue, got %s", stored.Status)
	}
	db.Where("id = ?", done.ID).First(&stored)
	if stored.Status != models.GoalStatusCompleted {
		t.Errorf("completed goal should stay completed, got %s", stored.Status)
	}
}
