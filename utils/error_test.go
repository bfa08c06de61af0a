package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'budget_u1_3_2026-05' for key 'idempotency_key'"}

	if !IsDuplicateKeyErr(dup) {
		t.Error("error 1062 must be a duplicate key error")
	}
	if !IsDuplicateKeyErr(fmt.Errorf("create entry: %w", dup)) {
		t.Error("wrapped 1062 must still be detected")
	}
	if !IsDuplicateKeyErr(gorm.ErrDuplicatedKey) {
		t.Error("gorm's translated duplicate error must be detected")
	}
	if IsDuplicateKeyErr(&mysql.MySQLError{Number: 1452, Message: "fk violation"}) {
		t.Error("other MySQL errors are not duplicates")
	}
	if IsDuplicateKeyErr(errors.New("connection refused")) {
		t.Error("non-MySQL errors are not duplicates")
	}
	if IsDuplicateKeyErr(nil) {
		t.Error("nil is not a duplicate")
	}
}
