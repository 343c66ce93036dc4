package mysql

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"verifier/pkg/store/mysql/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// lockForUpdate SELECT ... FOR UPDATE
var lockForUpdate = clause.Locking{Strength: "UPDATE"}

// Datastore wraps GORM DB and provides transaction support
type Datastore struct {
	db *gorm.DB
}

// NewDatastore creates a new MySQL datastore
func NewDatastore(dsn string) (*Datastore, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	ds, err := openDatastore(mysql.Open(dsn), &gorm.Config{
		Logger:                 newLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := ds.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}

	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return ds, nil
}

// NewDatastoreWithDialector opens a datastore on an existing dialector (tests use sqlmock)
func NewDatastoreWithDialector(dialector gorm.Dialector) (*Datastore, error) {
	return openDatastore(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
}

func openDatastore(dialector gorm.Dialector, cfg *gorm.Config) (*Datastore, error) {
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Datastore{db: db}, nil
}

// Migrate creates or alters every table the verifier owns
func (ds *Datastore) Migrate(ctx context.Context) error {
	err := ds.db.WithContext(ctx).AutoMigrate(
		&model.AnalysisTask{},
		&model.AnalysisTaskEvent{},
		&model.VerificationTask{},
		&model.VerificationJobInstance{},
		&model.HostRecord{},
		&model.CumulativeSumsState{},
		&model.ShortTermHistoryState{},
		&model.AnomalousPatternsState{},
		&model.RiskSummary{},
		&model.LogAnalysisCluster{},
		&model.LogAnalysisResult{},
		&model.ClusteredLogRecord{},
		&model.DeploymentTimeSeriesAnalysis{},
		&model.DeploymentLogAnalysis{},
		&model.Anomaly{},
		&model.HealthHeatmap{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (ds *Datastore) Close() error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection
func (ds *Datastore) Ping(ctx context.Context) error {
	sqlDB, err := ds.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type contextTxKey struct{}

// ExecTx executes fn within a transaction. A nested call joins the outer
// transaction. If fn returns an error the transaction is rolled back.
func (ds *Datastore) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(contextTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return ds.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, contextTxKey{}, tx))
	})
}

// DB returns the transaction bound to ctx, or the main DB
func (ds *Datastore) DB(ctx context.Context) *gorm.DB {
	tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB)
	if ok {
		return tx.WithContext(ctx)
	}
	return ds.db.WithContext(ctx)
}

// Now returns the database clock configured on GORM
func (ds *Datastore) Now() time.Time {
	return ds.db.NowFunc()
}
