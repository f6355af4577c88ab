package dbclient

import (
	"fmt"

	_ "github.com/lib/pq"

	"reports/internal/domain"
)

// buildPostgresDSN constructs a Postgres connection string from a DatabaseConnection.
func buildPostgresDSN(conn *domain.DatabaseConnection, password string) string {
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		conn.Host, port, conn.Database, sslMode,
	)
	if conn.Username != "" {
		dsn += " user=" + conn.Username
	}
	if password != "" {
		dsn += " password=" + quotePQ(password)
	}
	return dsn
}

// quotePQ quotes a keyword/value connection string value.
func quotePQ(v string) string {
	out := []byte{'\''}
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' || v[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, v[i])
	}
	return string(append(out, '\''))
}
