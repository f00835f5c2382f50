package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/ykvlv/discipline-bot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// Ping checks that the database is reachable.
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// --- Users ---

const userColumns = `chat_id, created_at, target_weight, week_parity_offset, subscription_ends_at,
	height_cm, birth_year, gender, activity_level, goal`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*domain.User, error) {
	var (
		chatID    int64
		createdAt int64
		target    sql.NullFloat64
		offset    sql.NullInt64
		subEnds   sql.NullInt64
		height    sql.NullFloat64
		born      sql.NullInt64
		gender    string
		activity  string
		goal      string
	)
	if err := s.Scan(&chatID, &createdAt, &target, &offset, &subEnds,
		&height, &born, &gender, &activity, &goal); err != nil {
		return nil, err
	}
	return &domain.User{
		ChatID:             chatID,
		TargetWeight:       fromNullFloat(target),
		WeekParityOffset:   fromNullInt(offset),
		CreatedAt:          unixUTC(createdAt),
		SubscriptionEndsAt: fromNullInt64(subEnds),
		Body: domain.BodyParams{
			HeightCm:  fromNullFloat(height),
			BirthYear: fromNullInt(born),
			Gender:    domain.Gender(gender),
			Activity:  domain.ActivityLevel(activity),
			Goal:      domain.Goal(goal),
		},
	}, nil
}

// UpsertUser inserts a user or updates its mutable fields. CreatedAt is kept
// from the first insert.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}

	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			target_weight        = excluded.target_weight,
			week_parity_offset   = excluded.week_parity_offset,
			subscription_ends_at = excluded.subscription_ends_at,
			height_cm            = excluded.height_cm,
			birth_year           = excluded.birth_year,
			gender               = excluded.gender,
			activity_level       = excluded.activity_level,
			goal                 = excluded.goal`,
		u.ChatID, created, toNullFloat(u.TargetWeight),
		toNullInt(u.WeekParityOffset), toNullInt64(u.SubscriptionEndsAt),
		toNullFloat(u.Body.HeightCm), toNullInt(u.Body.BirthYear),
		string(u.Body.Gender), string(u.Body.Activity), string(u.Body.Goal),
	)
	return err
}

// GetUser returns a user by chatID or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListUsers returns all users ordered by chat id.
func (r *SQLiteRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

// SetTargetWeight stores the user's target weight.
func (r *SQLiteRepo) SetTargetWeight(ctx context.Context, chatID int64, weight float64) error {
	return r.updateUser(ctx, `UPDATE users SET target_weight = ? WHERE chat_id = ?`, weight, chatID)
}

// SetBodyParams stores the inputs of the user's calorie profile.
func (r *SQLiteRepo) SetBodyParams(ctx context.Context, chatID int64, b domain.BodyParams) error {
	return r.updateUser(ctx, `
		UPDATE users SET height_cm = ?, birth_year = ?, gender = ?, activity_level = ?, goal = ?
		WHERE chat_id = ?`,
		toNullFloat(b.HeightCm), toNullInt(b.BirthYear),
		string(b.Gender), string(b.Activity), string(b.Goal), chatID,
	)
}

// SetSubscriptionEnd stores the date the user's subscription ends.
func (r *SQLiteRepo) SetSubscriptionEnd(ctx context.Context, chatID int64, end time.Time) error {
	return r.updateUser(ctx, `UPDATE users SET subscription_ends_at = ? WHERE chat_id = ?`, end.UTC().Unix(), chatID)
}

func (r *SQLiteRepo) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Schedule ---

// GetSchedule returns all schedule entries of a user ordered by weekday and time.
func (r *SQLiteRepo) GetSchedule(ctx context.Context, chatID int64) ([]domain.ScheduleEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT weekday, time, week_type
		FROM workout_schedule
		WHERE chat_id = ?
		ORDER BY weekday, time, week_type`,
		chatID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.ScheduleEntry
	for rows.Next() {
		e := domain.ScheduleEntry{ChatID: chatID}
		var wt string
		if err := rows.Scan(&e.Weekday, &e.Time, &wt); err != nil {
			return nil, err
		}
		e.WeekType = domain.WeekType(wt)
		res = append(res, e)
	}
	return res, rows.Err()
}

// ReplaceSchedule deletes every entry of (chatID, wt) and inserts entries in one
// transaction. Duplicates are ignored by the unique constraint. A non-nil
// parityOffset is stored in the same transaction.
func (r *SQLiteRepo) ReplaceSchedule(ctx context.Context, chatID int64, wt domain.WeekType, entries []domain.ScheduleEntry, parityOffset *int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM workout_schedule WHERE chat_id = ? AND week_type = ?`, chatID, string(wt),
	); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workout_schedule (chat_id, weekday, time, week_type)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			chatID, int(e.Weekday), e.Time, string(wt),
		); err != nil {
			return err
		}
	}
	if parityOffset != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET week_parity_offset = ? WHERE chat_id = ?`, *parityOffset, chatID,
		)
		if err != nil {
			return fmt.Errorf("set week parity: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrNotFound
		}
	}
	return tx.Commit()
}

// --- Workout logs ---

const logColumns = `chat_id, at, status, duration, notes`

func scanLog(s rowScanner) (*domain.WorkoutLog, error) {
	var (
		l        domain.WorkoutLog
		at       int64
		status   string
		duration sql.NullInt64
		notes    sql.NullString
	)
	if err := s.Scan(&l.ChatID, &at, &status, &duration, &notes); err != nil {
		return nil, err
	}
	l.At = unixUTC(at)
	l.Status = domain.Status(status)
	l.Duration = fromNullInt(duration)
	l.Notes = fromNullString(notes)
	return &l, nil
}

// UpsertWorkoutLog writes a log for (chat, occurrence); an existing log is overwritten.
func (r *SQLiteRepo) UpsertWorkoutLog(ctx context.Context, l domain.WorkoutLog) error {
	if err := l.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO workout_logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, at) DO UPDATE SET
			status   = excluded.status,
			duration = excluded.duration,
			notes    = excluded.notes`,
		l.ChatID, l.At.UTC().Unix(), string(l.Status), toNullInt(l.Duration), toNullString(l.Notes),
	)
	return err
}

// InsertWorkoutLogIfAbsent writes l only when no log exists for its occurrence
// and reports whether it did. The check and insert are one statement.
func (r *SQLiteRepo) InsertWorkoutLogIfAbsent(ctx context.Context, l domain.WorkoutLog) (bool, error) {
	if err := l.Validate(); err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO workout_logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, at) DO NOTHING`,
		l.ChatID, l.At.UTC().Unix(), string(l.Status), toNullInt(l.Duration), toNullString(l.Notes),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetWorkoutLog returns the log of one occurrence or ErrNotFound.
func (r *SQLiteRepo) GetWorkoutLog(ctx context.Context, chatID int64, at time.Time) (*domain.WorkoutLog, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+logColumns+` FROM workout_logs WHERE chat_id = ? AND at = ?`,
		chatID, domain.OccurrenceKey(at).UTC().Unix(),
	)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// WorkoutStats counts logs by status within [start, end].
func (r *SQLiteRepo) WorkoutStats(ctx context.Context, chatID int64, start, end time.Time) (domain.WorkoutStats, error) {
	var stats domain.WorkoutStats
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM workout_logs
		WHERE chat_id = ? AND at >= ? AND at <= ?
		GROUP BY status`,
		chatID, start.UTC().Unix(), end.UTC().Unix(),
	)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			cnt    int
		)
		if err := rows.Scan(&status, &cnt); err != nil {
			return stats, err
		}
		switch domain.Status(status) {
		case domain.StatusDone:
			stats.Done = cnt
		case domain.StatusMissed:
			stats.Missed = cnt
		}
	}
	return stats, rows.Err()
}

// ListWorkoutLogs returns logs within [start, end] ascending by time.
func (r *SQLiteRepo) ListWorkoutLogs(ctx context.Context, chatID int64, start, end time.Time) ([]domain.WorkoutLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM workout_logs
		WHERE chat_id = ? AND at >= ? AND at <= ?
		ORDER BY at ASC`,
		chatID, start.UTC().Unix(), end.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.WorkoutLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *l)
	}
	return res, rows.Err()
}

// --- Weights ---

// AddWeight appends a weight measurement.
func (r *SQLiteRepo) AddWeight(ctx context.Context, e domain.WeightEntry) error {
	if e.Weight <= 0 {
		return fmt.Errorf("%w: weight must be positive", domain.ErrValidation)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weights (chat_id, at, weight) VALUES (?, ?, ?)`,
		e.ChatID, e.At.UTC().Unix(), e.Weight,
	)
	return err
}

// LatestWeight returns the most recent measurement or ErrNotFound.
func (r *SQLiteRepo) LatestWeight(ctx context.Context, chatID int64) (*domain.WeightEntry, error) {
	var (
		e  = domain.WeightEntry{ChatID: chatID}
		at int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT at, weight FROM weights
		WHERE chat_id = ?
		ORDER BY at DESC, id DESC
		LIMIT 1`,
		chatID,
	).Scan(&at, &e.Weight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	e.At = unixUTC(at)
	return &e, nil
}

// ListWeights returns measurements within [start, end] ascending by time.
func (r *SQLiteRepo) ListWeights(ctx context.Context, chatID int64, start, end time.Time) ([]domain.WeightEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT at, weight FROM weights
		WHERE chat_id = ? AND at >= ? AND at <= ?
		ORDER BY at ASC, id ASC`,
		chatID, start.UTC().Unix(), end.UTC().Unix(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.WeightEntry
	for rows.Next() {
		var (
			e  = domain.WeightEntry{ChatID: chatID}
			at int64
		)
		if err := rows.Scan(&at, &e.Weight); err != nil {
			return nil, err
		}
		e.At = unixUTC(at)
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- Calories ---

// AddCalories appends an intake entry.
func (r *SQLiteRepo) AddCalories(ctx context.Context, l domain.CalorieLog) error {
	if l.Calories <= 0 {
		return fmt.Errorf("%w: calories must be positive", domain.ErrValidation)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calorie_logs (chat_id, day, at, calories) VALUES (?, ?, ?, ?)`,
		l.ChatID, l.Day, l.At.UTC().Unix(), l.Calories,
	)
	return err
}

// CaloriesForDay sums the intake of one local calendar day ("2006-01-02").
func (r *SQLiteRepo) CaloriesForDay(ctx context.Context, chatID int64, day string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(calories), 0) FROM calorie_logs WHERE chat_id = ? AND day = ?`,
		chatID, day,
	).Scan(&total)
	return total, err
}
