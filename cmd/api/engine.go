package main

import (
	"cygnus-loan-engine/internal/domain/authz"
	"cygnus-loan-engine/internal/domain/event"
	"cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/internal/infrastructure/metrics"
	accountuc "cygnus-loan-engine/internal/usecase/account"
	loanuc "cygnus-loan-engine/internal/usecase/loan"
	"cygnus-loan-engine/pkg/clock"
)

// shared by every usecase in the process
var sysClock = clock.NewSystem()

func newLoanUsecase(st *store, m *metrics.Loans, pub event.Publisher) *loanuc.Usecase {
	opts := []loanuc.Option{
		loanuc.WithLogger(log),
		loanuc.WithCustodyAccount(cfg.CustodyAccount),
		loanuc.WithResidualPolicy(loan.ResidualPolicy(cfg.ResidualPolicy)),
	}
	if m != nil {
		opts = append(opts, loanuc.WithMetrics(m))
	}
	if pub != nil {
		opts = append(opts, loanuc.WithPublisher(pub))
	}
	return loanuc.NewUsecase(st.loans, st.assets, st.uow, authz.ContextAuthorizer{}, sysClock, opts...)
}

func newAccountUsecase(st *store) *accountuc.Usecase {
	return accountuc.NewUsecase(st.assets, authz.ContextAuthorizer{}, sysClock, cfg.OperatorAccount, log)
}
