package db

import (
	"os"
	"testing"
)

func TestOpenInvalidDSN(t *testing.T) {
	for _, dsn := range []string{"", "invalid-dsn", "postgres://"} {
		conn, err := Open(dsn)
		if err == nil {
			conn.Close()
			t.Errorf("Open(%q) succeeded, want error", dsn)
		}
		if conn != nil {
			t.Errorf("Open(%q) returned non-nil db with error", dsn)
		}
	}
}

func TestOpenSuccess(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	conn, err := Open(dsn)
	if err != nil {
		t.Skipf("database unavailable: %v", err)
	}
	defer conn.Close()

	var result int
	if err := conn.QueryRow("SELECT 1").Scan(&result); err != nil || result != 1 {
		t.Fatalf("SELECT 1 = %d, %v", result, err)
	}
}
