package mysql

import (
	"errors"

	assetDomain "cygnus-loan-engine/internal/domain/asset"
	loanDomain "cygnus-loan-engine/internal/domain/loan"

	"gorm.io/gorm"
)

// Migrate creates the engine tables and seeds the loan counter at 0.
// Running it again leaves existing rows untouched.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Counter{},
		&loanDomain.Loan{},
		&loanDomain.Installment{},
		&assetDomain.Balance{},
		&assetDomain.Transfer{},
	)
	if err != nil {
		return err
	}
	var c Counter
	res := db.Where("name = ?", LoanCounterName).First(&c)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return db.Create(&Counter{Name: LoanCounterName, Value: 0}).Error
	}
	return res.Error
}
