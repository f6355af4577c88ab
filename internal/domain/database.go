package domain

import "fmt"

// DatabaseDriver represents the type of database engine.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// SQL reports whether the driver is served through database/sql.
func (d DatabaseDriver) SQL() bool {
	switch d {
	case DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverSQLite:
		return true
	}
	return false
}

// DatabaseConnection holds the metadata for connecting to a survey or catalog
// database. The password is resolved separately through a SecretStore using
// PasswordKey.
type DatabaseConnection struct {
	Driver      DatabaseDriver `json:"driver" mapstructure:"driver"`
	Host        string         `json:"host" mapstructure:"host"`         // hostname, URI (mongodb) or file path (sqlite)
	Port        int            `json:"port" mapstructure:"port"`         // 0 selects the driver default
	Database    string         `json:"database" mapstructure:"database"` // db name, empty for sqlite
	Username    string         `json:"username" mapstructure:"username"`
	SSLMode     string         `json:"sslMode" mapstructure:"ssl_mode"`
	PasswordKey string         `json:"passwordKey" mapstructure:"password_env"`
}

// Validate checks the fields every driver needs.
func (c DatabaseConnection) Validate() error {
	switch c.Driver {
	case DatabaseDriverSQLite, DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverMongoDB:
	default:
		return fmt.Errorf("unsupported driver: %q", c.Driver)
	}
	if c.Host == "" {
		return fmt.Errorf("%s connection: host is required", c.Driver)
	}
	return nil
}
