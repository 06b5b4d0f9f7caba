package database

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"techmarket-bootstrap/internal/config"
)

// NewDriver returns the driver for engine together with the name of the
// database it targets. The memory engine has no name of its own and returns "".
func NewDriver(engine string, cfg config.Databases) (SchemaDriver, string, error) {
	switch engine {
	case "mongo":
		return NewMongoDriver(cfg.Mongo), cfg.Mongo.Database, nil
	case "postgres":
		pgCfg, err := pgconn.ParseConfig(cfg.Postgres)
		if err != nil {
			return nil, "", fmt.Errorf("parse postgres uri: %w", err)
		}
		return NewPostgresDriver(cfg.Postgres), pgCfg.Database, nil
	case "mysql":
		myCfg, err := mysql.ParseDSN(cfg.MySQL)
		if err != nil {
			return nil, "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		return NewMySQLDriver(cfg.MySQL), myCfg.DBName, nil
	case "memory":
		return NewMemoryDriver(), "", nil
	}
	return nil, "", fmt.Errorf("unsupported database type: %s", engine)
}
