package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/medflow/timesheet-service/pkg/database"
	"github.com/medflow/timesheet-service/pkg/logger"
)

var (
	// Global test container (shared across all integration tests)
	globalContainer *PostgresContainer
	containerOnce   sync.Once
	containerErr    error
)

// IntegrationSuite provides a migrated PostgreSQL database for integration tests.
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *FixtureFactory
	Logger    *logger.Logger
}

// NewIntegrationSuite starts (or reuses) the shared container and applies migrations.
// Call this in TestMain.
//
// Usage:
//
//	var suite *testutil.IntegrationSuite
//
//	func TestMain(m *testing.M) {
//	    ctx := context.Background()
//	    var err error
//	    suite, err = testutil.NewIntegrationSuite(ctx, repository.Migrations())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
func NewIntegrationSuite(ctx context.Context, migrations fs.FS) (*IntegrationSuite, error) {
	container, err := getOrCreateContainer(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.New("test", "test")
	db, err := database.NewWithDSN(container.DSN, log)
	if err != nil {
		return nil, err
	}

	if _, err := db.Migrate(ctx, migrations); err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: container,
		DB:        db,
		Fixtures:  NewFixtureFactory(),
		Logger:    log,
	}, nil
}

func getOrCreateContainer(ctx context.Context) (*PostgresContainer, error) {
	containerOnce.Do(func() {
		globalContainer, containerErr = NewPostgresContainer(ctx, DefaultPostgresConfig())
	})
	return globalContainer, containerErr
}

// Reset empties the given tables so each test starts from a clean slate.
func (s *IntegrationSuite) Reset(t *testing.T, ctx context.Context, tables ...string) {
	t.Helper()
	if len(tables) == 0 {
		return
	}
	query := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}
}

// Close closes the suite's connection pool. The container is shared.
func (s *IntegrationSuite) Close() error {
	return s.DB.Close()
}

// TerminateContainer terminates the shared container.
// Only call this in TestMain after all tests have completed.
func TerminateContainer(ctx context.Context) {
	if globalContainer != nil {
		globalContainer.Terminate(ctx)
	}
}
