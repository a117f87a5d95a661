package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

var (
	// ErrTransactionConflict means another writer committed to linked_episode first,
	// usually a second link run against the same database.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrSchemaViolation means a document did not fit the linked_episode schema.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrPermissionDenied means the signed-in user may not write linked_episode.
	ErrPermissionDenied = errors.New("permission denied")
)

// queryErrorKinds maps fragments of SurrealDB query error messages to sentinels.
var queryErrorKinds = []struct {
	fragments []string
	sentinel  error
}{
	{[]string{"Transaction conflict"}, ErrTransactionConflict},
	{[]string{"Found", "but expected"}, ErrSchemaViolation},
	{[]string{"Couldn't coerce"}, ErrSchemaViolation},
	{[]string{"Not enough permissions"}, ErrPermissionDenied},
	{[]string{"IAM error"}, ErrPermissionDenied},
}

// wrapQueryError tags a SurrealDB query error with the matching sentinel. Other
// errors are returned unchanged.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if !errors.As(err, &queryErr) {
		return err
	}
	for _, kind := range queryErrorKinds {
		if containsAll(queryErr.Message, kind.fragments) {
			return fmt.Errorf("%w: %s", kind.sentinel, queryErr.Message)
		}
	}
	return err
}

func containsAll(s string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(s, f) {
			return false
		}
	}
	return true
}
