package main

import (
	"fmt"

	"gorm.io/gorm"

	"cygnus-loan-engine/internal/adapter/repository/kv"
	"cygnus-loan-engine/internal/adapter/repository/mysql"
	"cygnus-loan-engine/internal/config"
	"cygnus-loan-engine/internal/domain/asset"
	"cygnus-loan-engine/internal/domain/loan"
	"cygnus-loan-engine/internal/domain/uow"
	infradb "cygnus-loan-engine/internal/infrastructure/db"
)

// store bundles the repositories of one backend.
type store struct {
	loans  loan.Repository
	assets asset.Gateway
	uow    uow.UnitOfWork
	// gorm is nil for the LevelDB backend
	gorm  *gorm.DB
	close func() error
}

func openStore(c *config.Config) (*store, error) {
	switch c.StoreDriver {
	case config.DriverMySQL, config.DriverSQLite:
		var (
			db  *gorm.DB
			err error
		)
		if c.StoreDriver == config.DriverMySQL {
			db, err = infradb.OpenGorm(c.MySQLDSN())
		} else {
			db, err = infradb.OpenSQLite(c.SQLitePath)
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", c.StoreDriver, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &store{
			loans:  mysql.NewLoanRepository(db),
			assets: mysql.NewAssetLedger(db),
			uow:    mysql.NewGormUoW(db),
			gorm:   db,
			close:  sqlDB.Close,
		}, nil
	case config.DriverLevelDB:
		ldb, err := infradb.OpenLevelDB(c.LevelDBPath)
		if err != nil {
			return nil, fmt.Errorf("open leveldb: %w", err)
		}
		s := kv.NewStore(ldb)
		return &store{
			loans:  kv.NewLoanRepository(s),
			assets: kv.NewAssetLedger(s),
			uow:    kv.NewUoW(s),
			close:  s.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
}

// migrate creates the gorm schema. LevelDB needs none.
func (s *store) migrate() error {
	if s.gorm == nil {
		return nil
	}
	return mysql.Migrate(s.gorm)
}
