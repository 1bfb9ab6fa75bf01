package testcontainers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"agrismart.dev/agrismart/internal/pgstore"
)

// PostgresConfig holds configuration for PostgreSQL test container.
type PostgresConfig struct {
	// User is the PostgreSQL username (default: postgres)
	User string
	// Password is the PostgreSQL password (default: postgres)
	Password string
	// Database is the database name (default: agrismart)
	Database string
	// ContainerName is the name of the container (optional)
	ContainerName string
}

func (c *PostgresConfig) withDefaults() *PostgresConfig {
	out := PostgresConfig{}
	if c != nil {
		out = *c
	}
	if out.User == "" {
		out.User = "postgres"
	}
	if out.Password == "" {
		out.Password = "postgres"
	}
	if out.Database == "" {
		out.Database = "agrismart"
	}
	return &out
}

// StartPostgres starts a PostgreSQL container and returns it together with a
// store config pointing at it. The config carries no logger.
func StartPostgres(ctx context.Context, config *PostgresConfig) (testcontainers.Container, *pgstore.DBConfig, error) {
	config = config.withDefaults()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			),
			Env: map[string]string{
				"POSTGRES_USER":     config.User,
				"POSTGRES_PASSWORD": config.Password,
				"POSTGRES_DB":       config.Database,
			},
			Name: config.ContainerName,
		},
		Started: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, nil, terminate(ctx, container, fmt.Errorf("failed to get container host: %w", err))
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, nil, terminate(ctx, container, fmt.Errorf("failed to get container port: %w", err))
	}

	return container, &pgstore.DBConfig{
		Host:     host,
		Port:     port.Int(),
		User:     config.User,
		Password: config.Password,
		DBName:   config.Database,
		SSLMode:  "disable",
	}, nil
}

// PostgresStore connects to a container started by StartPostgres, migrates
// and seeds it.
func PostgresStore(cfg *pgstore.DBConfig, logger *slog.Logger) (*pgstore.Store, error) {
	dbCfg := *cfg
	dbCfg.Logger = logger
	db, err := pgstore.NewDB(&dbCfg)
	if err != nil {
		return nil, err
	}
	return pgstore.New(db, logger)
}

// terminate stops a half-started container and folds any cleanup error into err.
func terminate(ctx context.Context, container testcontainers.Container, err error) error {
	if termErr := container.Terminate(ctx); termErr != nil {
		return fmt.Errorf("%w (cleanup error: %w)", err, termErr)
	}
	return err
}
