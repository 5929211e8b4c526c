package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"careroute/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id     TEXT PRIMARY KEY,
	name        TEXT,
	language    TEXT NOT NULL,
	style       TEXT NOT NULL,
	history     TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS helplines (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	issue       TEXT NOT NULL,
	number      TEXT NOT NULL,
	region      TEXT NOT NULL,
	description TEXT,
	UNIQUE (issue, region)
);

CREATE TABLE IF NOT EXISTS experts (
	expert_id       TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	type            TEXT NOT NULL,
	specializations TEXT NOT NULL,
	languages       TEXT NOT NULL,
	available       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bookings (
	booking_id     TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	expert_type    TEXT NOT NULL,
	preferred_time TEXT,
	urgency_level  TEXT NOT NULL,
	notes          TEXT,
	status         TEXT NOT NULL,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS escalations (
	escalation_id        TEXT PRIMARY KEY,
	user_id              TEXT NOT NULL,
	level                TEXT NOT NULL,
	triggered_at         TEXT NOT NULL,
	actions_taken        TEXT NOT NULL,
	notifications_sent   TEXT NOT NULL,
	status               TEXT NOT NULL,
	expected_response_by TEXT NOT NULL,
	context              TEXT,
	message              TEXT,
	emergency_fallback   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS assessment_results (
	result_id       TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	assessment_type TEXT NOT NULL,
	score           INTEGER NOT NULL,
	severity_level  TEXT NOT NULL,
	recommendations TEXT NOT NULL,
	next_steps      TEXT NOT NULL,
	safety_concern  INTEGER NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id);
CREATE INDEX IF NOT EXISTS idx_escalations_user ON escalations(user_id);
CREATE INDEX IF NOT EXISTS idx_assessments_user ON assessment_results(user_id);
`

// SQLiteStore persists everything in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database, runs migrations and loads the reference data.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.seed(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) seed() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, h := range SeedHelplines {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO helplines (issue, number, region, description) VALUES (?, ?, ?, ?)`,
			h.Issue, h.Number, h.Region, h.Description,
		); err != nil {
			return fmt.Errorf("helpline %s: %w", h.Issue, err)
		}
	}
	for _, e := range SeedExperts {
		specs, _ := json.Marshal(e.Specializations)
		langs, _ := json.Marshal(e.Languages)
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO experts (expert_id, name, type, specializations, languages, available) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ExpertID, e.Name, e.Type, string(specs), string(langs), boolToInt(e.Available),
		); err != nil {
			return fmt.Errorf("expert %s: %w", e.ExpertID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	var (
		u                 models.User
		name              sql.NullString
		lang, style, hist string
		created           string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, name, language, style, history, created_at FROM users WHERE user_id = ?`, userID,
	).Scan(&u.UserID, &name, &lang, &style, &hist, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Name = name.String
	u.Language = models.ParseLanguage(lang)
	u.Style = models.ParseStyle(style)
	if err := json.Unmarshal([]byte(hist), &u.History); err != nil {
		return models.User{}, fmt.Errorf("decode history: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (s *SQLiteStore) PutUser(ctx context.Context, user models.User) error {
	if user.History == nil {
		user.History = []string{}
	}
	hist, err := json.Marshal(user.History)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, name, language, style, history, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			name = excluded.name,
			language = excluded.language,
			style = excluded.style,
			history = excluded.history`,
		user.UserID, user.Name, string(user.Language), string(user.Style), string(hist), formatTime(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetHelplines(ctx context.Context, region string) ([]models.Helpline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT issue, number, region, description FROM helplines WHERE ? = '' OR region = ? COLLATE NOCASE ORDER BY id`,
		region, region,
	)
	if err != nil {
		return nil, fmt.Errorf("query helplines: %w", err)
	}
	defer rows.Close()

	var out []models.Helpline
	for rows.Next() {
		var (
			h    models.Helpline
			desc sql.NullString
		)
		if err := rows.Scan(&h.Issue, &h.Number, &h.Region, &desc); err != nil {
			return nil, fmt.Errorf("scan helpline: %w", err)
		}
		h.Description = desc.String
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetExperts(ctx context.Context, tags []string) ([]models.Expert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT expert_id, name, type, specializations, languages, available FROM experts ORDER BY expert_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query experts: %w", err)
	}
	defer rows.Close()

	var out []models.Expert
	for rows.Next() {
		var (
			e            models.Expert
			specs, langs string
			available    int
		)
		if err := rows.Scan(&e.ExpertID, &e.Name, &e.Type, &specs, &langs, &available); err != nil {
			return nil, fmt.Errorf("scan expert: %w", err)
		}
		if err := json.Unmarshal([]byte(specs), &e.Specializations); err != nil {
			return nil, fmt.Errorf("decode specializations: %w", err)
		}
		if err := json.Unmarshal([]byte(langs), &e.Languages); err != nil {
			return nil, fmt.Errorf("decode languages: %w", err)
		}
		e.Available = available != 0
		if expertMatches(e, tags) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateBooking(ctx context.Context, req models.BookingRequest) (models.Booking, error) {
	b := models.Booking{
		BookingID:      uuid.New().String(),
		BookingRequest: req,
		Status:         "pending",
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookings (booking_id, user_id, expert_type, preferred_time, urgency_level, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.BookingID, req.UserID, req.ExpertType, formatTime(req.PreferredTime), req.UrgencyLevel, req.Notes, b.Status, formatTime(b.CreatedAt),
	)
	if err != nil {
		return models.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) SaveEscalationRecord(ctx context.Context, rec *models.EscalationRecord) error {
	actions, err := json.Marshal(rec.ActionsTaken)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	notes, err := json.Marshal(rec.NotificationsSent)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO escalations (escalation_id, user_id, level, triggered_at, actions_taken,
			notifications_sent, status, expected_response_by, context, message, emergency_fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EscalationID, rec.UserID, string(rec.Level), formatTime(rec.TriggeredAt), string(actions),
		string(notes), string(rec.Status), formatTime(rec.ExpectedResponseBy), rec.Context, rec.Message,
		boolToInt(rec.EmergencyFallback),
	)
	if err != nil {
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateEscalationStatus(ctx context.Context, escalationID string, status models.EscalationStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE escalations SET status = ? WHERE escalation_id = ?`, string(status), escalationID)
	if err != nil {
		return false, fmt.Errorf("update escalation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update escalation: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) EscalationStats(ctx context.Context, since time.Time) (models.EscalationStats, error) {
	stats := models.EscalationStats{CountsByLevel: make(map[models.EscalationLevel]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT level, COUNT(*) FROM escalations GROUP BY level`)
	if err != nil {
		return stats, fmt.Errorf("count escalations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			level string
			n     int
		)
		if err := rows.Scan(&level, &n); err != nil {
			return stats, fmt.Errorf("scan escalation count: %w", err)
		}
		stats.CountsByLevel[models.ParseEscalationLevel(level)] += n
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	// stored timestamps sort lexically, so string comparison is a time comparison
	err = s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN triggered_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM escalations`,
		formatTime(since), string(models.StatusActive),
	).Scan(&stats.Recent, &stats.Active)
	if err != nil {
		return stats, fmt.Errorf("count escalations: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStore) ListEscalations(ctx context.Context, userID string) ([]models.EscalationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT escalation_id, user_id, level, triggered_at, actions_taken, notifications_sent, status,
			expected_response_by, context, message, emergency_fallback
		FROM escalations WHERE user_id = ? ORDER BY triggered_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query escalations: %w", err)
	}
	defer rows.Close()

	var out []models.EscalationRecord
	for rows.Next() {
		var (
			r                   models.EscalationRecord
			level, status       string
			triggered, expected string
			actions, notes      string
			escContext, message sql.NullString
			fallback            int
		)
		if err := rows.Scan(&r.EscalationID, &r.UserID, &level, &triggered, &actions, &notes, &status,
			&expected, &escContext, &message, &fallback); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &r.ActionsTaken); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
		if err := json.Unmarshal([]byte(notes), &r.NotificationsSent); err != nil {
			return nil, fmt.Errorf("decode notifications: %w", err)
		}
		r.Level = models.ParseEscalationLevel(level)
		r.Status = models.EscalationStatus(status)
		r.TriggeredAt = parseTime(triggered)
		r.ExpectedResponseBy = parseTime(expected)
		r.Context = escContext.String
		r.Message = message.String
		r.EmergencyFallback = fallback != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListBookings(ctx context.Context, userID string) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT booking_id, user_id, expert_type, preferred_time, urgency_level, notes, status, created_at
		FROM bookings WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var (
			b                  models.Booking
			preferred, created string
			notes              sql.NullString
		)
		if err := rows.Scan(&b.BookingID, &b.UserID, &b.ExpertType, &preferred, &b.UrgencyLevel, &notes,
			&b.Status, &created); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		b.PreferredTime = parseTime(preferred)
		b.CreatedAt = parseTime(created)
		b.Notes = notes.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveAssessmentResult(ctx context.Context, res *models.AssessmentResult) error {
	if res.ResultID == "" {
		res.ResultID = uuid.New().String()
	}
	recs, err := json.Marshal(nonNil(res.Recommendations))
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	steps, err := json.Marshal(nonNil(res.NextSteps))
	if err != nil {
		return fmt.Errorf("encode next steps: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessment_results (result_id, user_id, assessment_type, score, severity_level,
			recommendations, next_steps, safety_concern, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ResultID, res.UserID, res.AssessmentType, res.Score, res.SeverityLevel,
		string(recs), string(steps), boolToInt(res.SafetyConcern), formatTime(res.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert assessment result: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAssessmentResults(ctx context.Context, userID string, limit int) ([]models.AssessmentResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT result_id, user_id, assessment_type, score, severity_level, recommendations, next_steps,
			safety_concern, created_at
		FROM assessment_results WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query assessment results: %w", err)
	}
	defer rows.Close()

	var out []models.AssessmentResult
	for rows.Next() {
		var (
			r           models.AssessmentResult
			recs, steps string
			safety      int
			created     string
		)
		if err := rows.Scan(&r.ResultID, &r.UserID, &r.AssessmentType, &r.Score, &r.SeverityLevel,
			&recs, &steps, &safety, &created); err != nil {
			return nil, fmt.Errorf("scan assessment result: %w", err)
		}
		if err := json.Unmarshal([]byte(recs), &r.Recommendations); err != nil {
			return nil, fmt.Errorf("decode recommendations: %w", err)
		}
		if err := json.Unmarshal([]byte(steps), &r.NextSteps); err != nil {
			return nil, fmt.Errorf("decode next steps: %w", err)
		}
		r.SafetyConcern = safety != 0
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
