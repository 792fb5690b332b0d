package durable

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

func newMock(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewWithPool(mock), mock
}

func TestGetHit(t *testing.T) {
	s, mock := newMock(t)
	rows := pgxmock.NewRows([]string{"data", "expires_at"}).AddRow([]byte(`{"a":1}`), nil)
	mock.ExpectQuery(`SELECT data, expires_at FROM storage_cache WHERE cache_key = \$1`).
		WithArgs("k").WillReturnRows(rows)

	v, ok, err := s.Get(context.Background(), "k")
	if err != nil || !ok || string(v) != `{"a":1}` {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetExpiredTreatedAsAbsent(t *testing.T) {
	s, mock := newMock(t)
	past := time.Now().Add(-time.Hour)
	rows := pgxmock.NewRows([]string{"data", "expires_at"}).AddRow([]byte(`{}`), &past)
	mock.ExpectQuery(`SELECT data, expires_at FROM storage_cache WHERE cache_key = \$1`).
		WithArgs("k").WillReturnRows(rows)

	_, ok, err := s.Get(context.Background(), "k")
	if err != nil || ok {
		t.Fatalf("Get = ok=%v err=%v; want absent", ok, err)
	}
}

func TestSetUpsert(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`INSERT INTO storage_cache`).
		WithArgs("k", []byte("v"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := s.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSweepReturnsCount(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec(`DELETE FROM storage_cache WHERE expires_at IS NOT NULL AND expires_at < now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.Sweep(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("Sweep = %d, %v; want 3, nil", n, err)
	}
}

func TestUpsertCustomer(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	ticketID := "T1"
	rows := pgxmock.NewRows([]string{"chat_user_id", "ticket_customer_id", "username", "display_name", "email", "avatar_url", "created_at", "updated_at"}).
		AddRow("U1", &ticketID, "alice", nil, nil, nil, now, now)
	mock.ExpectQuery(`INSERT INTO customers`).
		WithArgs("U1", &ticketID, "alice", nil, nil, nil).
		WillReturnRows(rows)

	c, err := s.UpsertCustomer(context.Background(), UpsertCustomerParams{
		ChatUserID:       "U1",
		TicketCustomerID: &ticketID,
		Username:         "alice",
	})
	if err != nil {
		t.Fatalf("UpsertCustomer: %v", err)
	}
	if c.ChatUserID != "U1" || c.Username != "alice" {
		t.Fatalf("unexpected customer: %+v", c)
	}
}

func TestGetCustomerByChatIDMiss(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery(`SELECT chat_user_id, ticket_customer_id, username, display_name, email, avatar_url, created_at, updated_at\s+FROM customers WHERE chat_user_id = \$1`).
		WithArgs("nope").WillReturnRows(pgxmock.NewRows([]string{
		"chat_user_id", "ticket_customer_id", "username", "display_name", "email", "avatar_url", "created_at", "updated_at",
	}))

	_, ok, err := s.GetCustomerByChatID(context.Background(), "nope")
	if err != nil || ok {
		t.Fatalf("GetCustomerByChatID = ok=%v err=%v; want absent", ok, err)
	}
}
