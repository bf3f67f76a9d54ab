package moderation

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"trekmap/internal/db"
	"trekmap/internal/domain/reviewimages"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/domain/storage"
	"trekmap/internal/ledger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testDB *pgxpool.Pool

func TestMain(m *testing.M) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL != "" {
		if _, err := db.Migrate(dbURL); err != nil {
			fmt.Printf("Warning: Failed to migrate test database: %v\n", err)
		} else if pool, err := db.New(dbURL, 10, "1m"); err != nil {
			fmt.Printf("Warning: Failed to connect to test database: %v\n", err)
		} else {
			testDB = pool
		}
	}

	// packages sharing the test database take turns
	var lock *pgxpool.Conn
	if testDB != nil {
		ctx := context.Background()
		if conn, err := testDB.Acquire(ctx); err == nil {
			if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(7301)`); err == nil {
				lock = conn
			} else {
				conn.Release()
			}
		}
	}

	code := m.Run()

	if lock != nil {
		_, _ = lock.Exec(context.Background(), `SELECT pg_advisory_unlock(7301)`)
		lock.Release()
	}
	if testDB != nil {
		testDB.Close()
	}
	os.Exit(code)
}

type seeded struct {
	ownerID  int64
	adminID  int64
	placeID  int64
	townID   int64
	reviewID int64
}

func seed(t *testing.T, placePoints int) seeded {
	t.Helper()
	if testDB == nil {
		t.Skip("TEST_DATABASE_URL not set or database unavailable")
	}
	ctx := context.Background()

	_, err := testDB.Exec(ctx, `
        TRUNCATE review_image_jobs, review_image, images, user_point, review_status_history,
                 review, places, towns, user_roles, users RESTART IDENTITY CASCADE
    `)
	require.NoError(t, err)

	var s seeded
	require.NoError(t, testDB.QueryRow(ctx,
		`INSERT INTO users (first_name, email) VALUES ('Asha', 'asha@example.com') RETURNING id`).Scan(&s.ownerID))
	require.NoError(t, testDB.QueryRow(ctx,
		`INSERT INTO users (first_name, email) VALUES ('Admin', 'admin@example.com') RETURNING id`).Scan(&s.adminID))
	require.NoError(t, testDB.QueryRow(ctx,
		`INSERT INTO towns (name, max_distance, urban_center_range) VALUES ('Pokhara', 1000, 200) RETURNING id`).Scan(&s.townID))
	require.NoError(t, testDB.QueryRow(ctx, `
        INSERT INTO places (town_id, name, points, urbar_center_distance, difficulty_level, popularity)
        VALUES ($1, 'Sky Lake', $2, 500, 3, 3) RETURNING id
    `, s.townID, placePoints).Scan(&s.placeID))

	repo := reviews.NewRepository(testDB)
	rv := &reviews.Review{UserID: &s.ownerID, Rating: 5}
	require.NoError(t, rv.SetTarget(reviews.TargetPlace, s.placeID))
	require.NoError(t, repo.Create(ctx, rv))
	require.Equal(t, reviews.StatusPending, rv.Status)
	s.reviewID = rv.ID
	return s
}

func count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, testDB.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func newDBService(t *testing.T) *Service {
	return NewService(storage.NewContainer(testDB), nil, nil, nil, zaptest.NewLogger(t).Sugar())
}

func TestIntegration_ApproveIsIdempotent(t *testing.T) {
	s := seed(t, 208)
	svc := newDBService(t)
	ctx := context.Background()

	first, err := svc.Approve(ctx, s.reviewID, s.adminID, nil)
	require.NoError(t, err)
	assert.True(t, first.Credited)

	second, err := svc.Approve(ctx, s.reviewID, s.adminID, nil)
	require.NoError(t, err)
	assert.False(t, second.Credited)

	assert.Equal(t, 1, count(t, `SELECT count(*) FROM user_point WHERE user_id = $1`, s.ownerID))
	assert.Equal(t, 2, count(t, `SELECT count(*) FROM review_status_history WHERE review_id = $1`, s.reviewID))

	var total, ranking, remaining, distance int
	require.NoError(t, testDB.QueryRow(ctx, `
        SELECT total_points, ranking_points, remaining_points, distance_travelled FROM users WHERE id = $1
    `, s.ownerID).Scan(&total, &ranking, &remaining, &distance))
	assert.Equal(t, []int{208, 208, 208, 500}, []int{total, ranking, remaining, distance})
}

func TestIntegration_ConcurrentApprovalsCreditOnce(t *testing.T) {
	s := seed(t, 150)
	svc := newDBService(t)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(context.Background(), s.reviewID, s.adminID, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, count(t, `SELECT count(*) FROM user_point WHERE user_id = $1`, s.ownerID))
	assert.Equal(t, 150, count(t, `SELECT total_points FROM users WHERE id = $1`, s.ownerID))
}

func TestIntegration_RejectWritesHistoryOnly(t *testing.T) {
	s := seed(t, 100)
	reason := "spam"

	res, err := newDBService(t).ChangeStatus(context.Background(), s.reviewID, s.adminID, reviews.StatusRejected, &reason)
	require.NoError(t, err)
	assert.Equal(t, reviews.StatusRejected, res.Status)

	assert.Equal(t, 0, count(t, `SELECT count(*) FROM user_point`))
	assert.Equal(t, 1, count(t, `
        SELECT count(*) FROM review_status_history WHERE review_id = $1 AND status = 'rejected' AND reason = 'spam'
    `, s.reviewID))
}

func TestIntegration_LedgerFailureRollsBack(t *testing.T) {
	s := seed(t, 40000)

	_, err := newDBService(t).Approve(context.Background(), s.reviewID, s.adminID, nil)
	require.ErrorIs(t, err, ledger.ErrPointsOutOfRange)

	var status string
	require.NoError(t, testDB.QueryRow(context.Background(),
		`SELECT status::text FROM review WHERE id = $1`, s.reviewID).Scan(&status))
	assert.Equal(t, "pending", status)
	assert.Equal(t, 0, count(t, `SELECT count(*) FROM review_status_history`))
	assert.Equal(t, 0, count(t, `SELECT count(*) FROM user_point`))
}

func attachImage(t *testing.T, reviewID int64, publicID string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, testDB.QueryRow(context.Background(), `
        WITH img AS (
            INSERT INTO images (url, public_id) VALUES ('https://res.cloudinary.com/demo/' || $2, $2)
            RETURNING id
        )
        INSERT INTO review_image (review_id, image_id) SELECT $1, id FROM img RETURNING id
    `, reviewID, publicID).Scan(&id))
	return id
}

func imageStatus(t *testing.T, id int64) string {
	t.Helper()
	var status string
	require.NoError(t, testDB.QueryRow(context.Background(),
		`SELECT status::text FROM review_image WHERE id = $1`, id).Scan(&status))
	return status
}

func TestIntegration_ReviewAndImageStatusesAreIndependent(t *testing.T) {
	s := seed(t, 100)
	ctx := context.Background()
	first := attachImage(t, s.reviewID, "reviews/a")
	second := attachImage(t, s.reviewID, "reviews/b")

	_, err := newDBService(t).Approve(ctx, s.reviewID, s.adminID, nil)
	require.NoError(t, err)
	assert.Equal(t, "pending", imageStatus(t, first))
	assert.Equal(t, "pending", imageStatus(t, second))

	img, err := reviewimages.NewRepository(testDB).SetStatus(ctx, first, reviews.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, reviews.StatusRejected, img.Status)
	assert.Equal(t, "pending", imageStatus(t, second))

	var status string
	require.NoError(t, testDB.QueryRow(ctx, `SELECT status::text FROM review WHERE id = $1`, s.reviewID).Scan(&status))
	assert.Equal(t, "approved", status)
	assert.Equal(t, 1, count(t, `SELECT count(*) FROM review_status_history WHERE review_id = $1`, s.reviewID))
}
