package sqlstore

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewWithDB(sqlx.NewDb(db, "postgres"), DriverPostgres), mock
}

func TestAppendEventRebindsForPostgres(t *testing.T) {
	s, mock := newMockStore(t)
	now := domain.Now()

	mock.ExpectQuery(`INSERT INTO sync_events .* VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\) RETURNING id`).
		WithArgs(int64(7), "folder", int64(3), "delete", `{"id":3}`, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(99)))

	e := &domain.SyncEvent{
		UserID:     7,
		EntityType: domain.EntityFolder,
		EntityID:   3,
		Action:     domain.ActionDelete,
		Payload:    []byte(`{"id":3}`),
		CreatedAt:  now,
	}
	if err := s.Q().AppendEvent(context.Background(), e); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	if e.ID != 99 {
		t.Errorf("AppendEvent() id = %d, want 99", e.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFinishJobOnlyFromActiveStates(t *testing.T) {
	s, mock := newMockStore(t)
	now := domain.Now()

	mock.ExpectExec(`UPDATE jobs SET status = .* WHERE id = \$14 AND status IN \(\$15, \$16\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.Q().FinishJob(context.Background(), &domain.Job{
		ID:         5,
		Status:     domain.JobDone,
		FinishedAt: &now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("FinishJob() error = %v", err)
	}
	if ok {
		t.Errorf("FinishJob() = true for an already terminal job")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestChunks(t *testing.T) {
	got := chunks([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[2]) != 1 {
		t.Errorf("chunks() = %v", got)
	}
	if chunks([]int{}, 2) != nil {
		t.Errorf("chunks(empty) should be nil")
	}
}
