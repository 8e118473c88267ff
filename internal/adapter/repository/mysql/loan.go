package mysql

import (
	"context"
	"errors"
	"fmt"

	loanDomain "cygnus-loan-engine/internal/domain/loan"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoanCounterName is the counters row that hands out loan ids.
const LoanCounterName = "loan_count"

// Table: counters
type Counter struct {
	Name  string `gorm:"column:name;primaryKey;size:64"`
	Value uint64 `gorm:"column:value;not null"`
}

func (Counter) TableName() string { return "counters" }

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) NextLoanID(ctx context.Context) (uint64, error) {
	var c Counter
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", LoanCounterName).
		First(&c)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		// first use on a store that skipped Migrate
		c = Counter{Name: LoanCounterName}
		if err := r.db.WithContext(ctx).Create(&c).Error; err != nil {
			return 0, err
		}
	} else if res.Error != nil {
		return 0, res.Error
	}

	next := c.Value
	upd := r.db.WithContext(ctx).Model(&Counter{}).
		Where("name = ? AND value = ?", LoanCounterName, next).
		Update("value", next+1)
	if upd.Error != nil {
		return 0, upd.Error
	}
	if upd.RowsAffected != 1 {
		return 0, fmt.Errorf("loan counter moved concurrently (read %d)", next)
	}
	return next, nil
}

// Create inserts the loan and its schedule.
func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// Save updates the loan row and every installment row. Associations are
// written explicitly so gorm never upserts them by zero primary key.
func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Save(l).Error; err != nil {
		return err
	}
	for i := range l.Schedule {
		p := &l.Schedule[i]
		p.LoanID = l.LoanID
		if err := db.Save(p).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID uint64) (*loanDomain.Loan, error) {
	return r.get(r.db.WithContext(ctx), loanID)
}

// GetByLoanIDForUpdate takes a row lock on the loan (ignored by sqlite,
// which serialises writers anyway).
func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID uint64) (*loanDomain.Loan, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), loanID)
}

func (r *LoanRepository) get(db *gorm.DB, loanID uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := db.Preload("Schedule", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("loan_id = ?", loanID).
		First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", loanDomain.ErrLoanNotFound, loanID)
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return &out, nil
}

func (r *LoanRepository) ListActive(ctx context.Context) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	res := r.db.WithContext(ctx).
		Preload("Schedule", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("status = ?", loanDomain.StatusActive).
		Order("loan_id ASC").
		Find(&out)
	return out, res.Error
}
