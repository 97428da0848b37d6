package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/jonesrussell/sherlock-center/internal/domain"
	"github.com/jonesrussell/sherlock-center/internal/logger"
	"github.com/jonesrussell/sherlock-center/internal/repository"
)

func scanColumnNames() []string {
	return []string{"id", "user_id", "target_url", "scan_type", "status", "security_score", "started_at", "completed_at"}
}

func TestScanRepository_CreatePending(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := repository.NewScanRepository(db, logger.NewNop())
	ctx := context.Background()

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   bool
	}{
		{
			name: "successfully creates pending scan",
			setupMock: func() {
				mock.ExpectExec("INSERT INTO scans").
					WithArgs(sqlmock.AnyArg(), int64(7), "https://example.com/users/alice", domain.ScanTypeQuick, domain.ScanPending, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantErr: false,
		},
		{
			name: "database error returns error",
			setupMock: func() {
				mock.ExpectExec("INSERT INTO scans").
					WithArgs(sqlmock.AnyArg(), int64(7), "https://example.com/users/alice", domain.ScanTypeQuick, domain.ScanPending, sqlmock.AnyArg()).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			scan, callErr := repo.CreatePending(ctx, 7, "https://example.com/users/alice", domain.ScanTypeQuick)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("CreatePending() error = %v, wantErr %v", callErr, tc.wantErr)
			}

			if !tc.wantErr {
				if scan.ID == uuid.Nil {
					t.Error("CreatePending() returned nil scan id")
				}
				if scan.Status != domain.ScanPending {
					t.Errorf("CreatePending() status = %s, want %s", scan.Status, domain.ScanPending)
				}
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestScanRepository_SetState(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := repository.NewScanRepository(db, logger.NewNop())
	ctx := context.Background()
	scanID := uuid.New()
	completedAt := time.Now().UTC()
	score := 75.0

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   bool
	}{
		{
			name: "transitions a live scan",
			setupMock: func() {
				mock.ExpectExec("UPDATE scans").
					WithArgs(scanID, domain.ScanCompleted, &completedAt, &score).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantErr: false,
		},
		{
			name: "terminal scan is left untouched",
			setupMock: func() {
				// Zero rows means the guard filtered out an already-terminal scan.
				mock.ExpectExec("UPDATE scans").
					WithArgs(scanID, domain.ScanCompleted, &completedAt, &score).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: false,
		},
		{
			name: "database error returns error",
			setupMock: func() {
				mock.ExpectExec("UPDATE scans").
					WithArgs(scanID, domain.ScanCompleted, &completedAt, &score).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			callErr := repo.SetState(ctx, scanID, domain.ScanCompleted, &completedAt, &score)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("SetState() error = %v, wantErr %v", callErr, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestScanRepository_AppendResult(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := repository.NewScanRepository(db, logger.NewNop())
	ctx := context.Background()
	scanID := uuid.New()
	httpStatus := 200
	queryTime := 0.42

	result := domain.ScanResult{
		ScanID:     scanID,
		SiteName:   "GitHub",
		URLMain:    "https://github.com",
		URLUser:    "https://github.com/alice",
		Status:     domain.OutcomeClaimed,
		HTTPStatus: &httpStatus,
		QueryTime:  &queryTime,
	}

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   bool
	}{
		{
			name: "successfully appends result",
			setupMock: func() {
				mock.ExpectExec("INSERT INTO scan_results").
					WithArgs(scanID, "GitHub", "https://github.com", "https://github.com/alice",
						domain.OutcomeClaimed, &httpStatus, &queryTime, nil).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			wantErr: false,
		},
		{
			name: "duplicate site is silently dropped",
			setupMock: func() {
				// ON CONFLICT DO NOTHING reports zero affected rows.
				mock.ExpectExec("INSERT INTO scan_results").
					WithArgs(scanID, "GitHub", "https://github.com", "https://github.com/alice",
						domain.OutcomeClaimed, &httpStatus, &queryTime, nil).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: false,
		},
		{
			name: "database error returns error",
			setupMock: func() {
				mock.ExpectExec("INSERT INTO scan_results").
					WithArgs(scanID, "GitHub", "https://github.com", "https://github.com/alice",
						domain.OutcomeClaimed, &httpStatus, &queryTime, nil).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			callErr := repo.AppendResult(ctx, result)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("AppendResult() error = %v, wantErr %v", callErr, tc.wantErr)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestScanRepository_GetForUser(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := repository.NewScanRepository(db, logger.NewNop())
	ctx := context.Background()
	scanID := uuid.New()
	now := time.Now().UTC()

	testCases := []struct {
		name        string
		userID      int64
		setupMock   func()
		wantErr     error
		wantAnyErr  bool
		wantScanHit bool
	}{
		{
			name:   "returns owned scan",
			userID: 7,
			setupMock: func() {
				rows := sqlmock.NewRows(scanColumnNames()).
					AddRow(scanID, int64(7), "https://example.com/u/alice", "quick", "running", nil, now, nil)
				mock.ExpectQuery("SELECT").
					WithArgs(scanID, int64(7)).
					WillReturnRows(rows)
			},
			wantScanHit: true,
		},
		{
			name:   "another user's scan reads as not found",
			userID: 8,
			setupMock: func() {
				mock.ExpectQuery("SELECT").
					WithArgs(scanID, int64(8)).
					WillReturnError(sql.ErrNoRows)
			},
			wantErr:    repository.ErrNotFound,
			wantAnyErr: true,
		},
		{
			name:   "database error returns error",
			userID: 7,
			setupMock: func() {
				mock.ExpectQuery("SELECT").
					WithArgs(scanID, int64(7)).
					WillReturnError(sql.ErrConnDone)
			},
			wantAnyErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			scan, callErr := repo.GetForUser(ctx, scanID, tc.userID)
			if (callErr != nil) != tc.wantAnyErr {
				t.Errorf("GetForUser() error = %v, wantErr %v", callErr, tc.wantAnyErr)
			}
			if tc.wantErr != nil && !errors.Is(callErr, tc.wantErr) {
				t.Errorf("GetForUser() error = %v, want %v", callErr, tc.wantErr)
			}
			if tc.wantScanHit && scan.ID != scanID {
				t.Errorf("GetForUser() id = %s, want %s", scan.ID, scanID)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestScanRepository_ListForUser(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := repository.NewScanRepository(db, logger.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	testCases := []struct {
		name      string
		setupMock func()
		wantCount int
		wantErr   bool
	}{
		{
			name: "returns user's scans newest first",
			setupMock: func() {
				rows := sqlmock.NewRows(scanColumnNames()).
					AddRow(uuid.New(), int64(7), "https://a.example/u/x", "quick", "completed", 50.0, now, now).
					AddRow(uuid.New(), int64(7), "https://b.example/u/y", "comprehensive", "failed", nil, now.Add(-time.Hour), now)
				mock.ExpectQuery("SELECT").
					WithArgs(int64(7), 20, 0).
					WillReturnRows(rows)
			},
			wantCount: 2,
		},
		{
			name: "no scans yields empty list",
			setupMock: func() {
				mock.ExpectQuery("SELECT").
					WithArgs(int64(7), 20, 0).
					WillReturnRows(sqlmock.NewRows(scanColumnNames()))
			},
			wantCount: 0,
		},
		{
			name: "database error returns error",
			setupMock: func() {
				mock.ExpectQuery("SELECT").
					WithArgs(int64(7), 20, 0).
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			scans, callErr := repo.ListForUser(ctx, 7, 20, 0)
			if (callErr != nil) != tc.wantErr {
				t.Errorf("ListForUser() error = %v, wantErr %v", callErr, tc.wantErr)
			}
			if len(scans) != tc.wantCount {
				t.Errorf("ListForUser() returned %d scans, want %d", len(scans), tc.wantCount)
			}

			if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
				t.Errorf("unfulfilled expectations: %v", expectErr)
			}
		})
	}
}

func TestScanRepository_CountResults(t *testing.T) {
	t.Helper()

	db, mock, setupErr := sqlmock.New()
	if setupErr != nil {
		t.Fatalf("failed to create sqlmock: %v", setupErr)
	}
	defer db.Close()

	repo := repository.NewScanRepository(db, logger.NewNop())
	ctx := context.Background()
	scanID := uuid.New()

	rows := sqlmock.NewRows([]string{"count"}).AddRow(42)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(scanID).
		WillReturnRows(rows)

	count, callErr := repo.CountResults(ctx, scanID)
	if callErr != nil {
		t.Fatalf("CountResults() error = %v", callErr)
	}
	if count != 42 {
		t.Errorf("CountResults() = %d, want 42", count)
	}

	if expectErr := mock.ExpectationsWereMet(); expectErr != nil {
		t.Errorf("unfulfilled expectations: %v", expectErr)
	}
}
