package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrAuthentication means the credentials were rejected. Fatal.
	ErrAuthentication = errors.New("authentication failed")

	// ErrSchemaConflict means a structural change could not be applied
	// because existing data or an existing definition contradicts it.
	ErrSchemaConflict = errors.New("schema conflict")

	// ErrDuplicateKey means a write violated a unique index.
	ErrDuplicateKey = errors.New("duplicate key")

	ErrNotFound = errors.New("not found")

	// ErrUnknownCollection is returned for names outside schema.Collections.
	ErrUnknownCollection = errors.New("unknown collection")
)

// classify wraps err with kind, keeping err reachable through errors.As.
func classify(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

// MongoDB server error codes.
const (
	mongoAuthenticationFailed  = 18
	mongoUnauthorized          = 13
	mongoNamespaceExists       = 48
	mongoIndexOptionsConflict  = 85
	mongoIndexKeySpecsConflict = 86
)

func mongoCode(err error, codes ...int) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.HasErrorCode(c) {
			return true
		}
	}
	return false
}

// isMongoAuthError recognizes credential failures. Handshake failures reach
// the caller wrapped in connection errors that carry no server code, so the
// message is inspected as well.
func isMongoAuthError(err error) bool {
	if err == nil {
		return false
	}
	if mongoCode(err, mongoAuthenticationFailed, mongoUnauthorized) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "AuthenticationFailed") || strings.Contains(msg, "auth error")
}

func isMongoNamespaceExists(err error) bool {
	return mongoCode(err, mongoNamespaceExists)
}

func isMongoIndexConflict(err error) bool {
	return mongoCode(err, mongoIndexOptionsConflict, mongoIndexKeySpecsConflict)
}

// PostgreSQL SQLSTATE codes.
const (
	pgUniqueViolation      = "23505"
	pgInvalidPassword      = "28P01"
	pgInvalidAuthorization = "28000"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isPgAuthError(err error) bool {
	switch pgCode(err) {
	case pgInvalidPassword, pgInvalidAuthorization:
		return true
	}
	return false
}

// pgIndexError maps a CREATE UNIQUE INDEX over duplicate values to a schema
// conflict.
func pgIndexError(err error) error {
	if pgCode(err) == pgUniqueViolation {
		return classify(ErrSchemaConflict, err)
	}
	return err
}

func pgInsertError(err error) error {
	if pgCode(err) == pgUniqueViolation {
		return classify(ErrDuplicateKey, err)
	}
	return err
}

// MySQL server error numbers.
const (
	myDBAccessDenied   = 1044
	myAccessDenied     = 1045
	myDuplicateKeyName = 1061
	myDuplicateEntry   = 1062
)

func myCode(err error) uint16 {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}

func isMySQLAuthError(err error) bool {
	switch myCode(err) {
	case myDBAccessDenied, myAccessDenied:
		return true
	}
	return false
}

// myIndexError treats a duplicate key name as an index already applied.
func myIndexError(err error) error {
	switch myCode(err) {
	case myDuplicateKeyName:
		return nil
	case myDuplicateEntry:
		return classify(ErrSchemaConflict, err)
	}
	return err
}

func myInsertError(err error) error {
	if myCode(err) == myDuplicateEntry {
		return classify(ErrDuplicateKey, err)
	}
	return err
}
