package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	pg := &Client{Driver: DriverPostgres}
	if got := pg.Rebind("INSERT INTO t (a, b) VALUES (?, ?)"); got != "INSERT INTO t (a, b) VALUES ($1, $2)" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &Client{Driver: DriverSQLite}
	if got := lite.Rebind("SELECT ? + ?"); got != "SELECT ? + ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x", Options{}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestInTxRollsBack(t *testing.T) {
	c, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "tx.db"), Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	ctx := context.Background()
	if _, err := c.DB.ExecContext(ctx, `CREATE TABLE t (v INTEGER)`); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = c.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO t (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var n int
	if err := c.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}
}
