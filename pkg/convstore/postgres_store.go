package convstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/healthconcierge/wa-concierge/pkg/convstate"
)

// PostgresStore is a ConversationStore backed by PostgreSQL, accessed
// through database/sql with the pgx stdlib driver. It uses hand-written
// SQL rather than an ORM: the schema is small and stable enough that a
// code-generation layer would add more ceremony than it saves.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-migrated *sql.DB.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, user_identifier, clinic_id, channel, patient_id,
	flow_state, turn_status, pending_action, pending_since, episode_type, control_mode,
	excluded_doctors, excluded_services, desired_service, desired_service_id,
	desired_doctor, desired_doctor_id, time_window_start, time_window_end, time_window_label,
	constraints_updated_at, language, unread_for_human_count, created_at, updated_at`

// GetOrCreate implements ConversationStore.
func (p *PostgresStore) GetOrCreate(ctx context.Context, phone, clinicID string, channel Channel, initial Session) (Session, error) {
	existing, err := p.getByPhone(ctx, clinicID, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	session := initial
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.ClinicID = clinicID
	session.UserIdentifier = phone
	session.Channel = channel
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	if err := p.insert(ctx, session); err != nil {
		// Lost the create race to a concurrent writer; fetch what landed.
		if existing, getErr := p.getByPhone(ctx, clinicID, phone); getErr == nil {
			return existing, nil
		}
		return Session{}, err
	}
	return session, nil
}

func (p *PostgresStore) insert(ctx context.Context, s Session) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
		ON CONFLICT (clinic_id, user_identifier) DO NOTHING`,
		s.ID, s.UserIdentifier, s.ClinicID, string(s.Channel), s.PatientID,
		string(s.State.FlowState), string(s.State.TurnStatus), string(s.State.PendingAction), s.State.PendingSince,
		string(s.State.EpisodeType), string(s.State.ControlMode),
		pq.Array(s.Constraints.ExcludedDoctors), pq.Array(s.Constraints.ExcludedServices),
		s.Constraints.DesiredService, s.Constraints.DesiredServiceID,
		s.Constraints.DesiredDoctor, s.Constraints.DesiredDoctorID,
		s.Constraints.TimeWindowStart, s.Constraints.TimeWindowEnd, s.Constraints.TimeWindowLabel,
		s.Constraints.UpdatedAt, s.Language, s.UnreadForHumanCount, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("convstore: insert session: %w", err)
	}
	// ON CONFLICT DO NOTHING reports a lost race as zero rows, not an error.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("convstore: insert session: a session for this contact already exists")
	}
	return nil
}

func (p *PostgresStore) getByPhone(ctx context.Context, clinicID, phone string) (Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+`
		FROM sessions WHERE clinic_id = $1 AND user_identifier = $2`, clinicID, phone)
	return scanSession(row)
}

// Get implements ConversationStore.
func (p *PostgresStore) Get(ctx context.Context, sessionID string) (Session, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+sessionColumns+`
		FROM sessions WHERE id = $1`, sessionID)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	var channel, pendingAction, episode, controlMode string
	var pendingSince, windowStart, windowEnd, constraintsUpdated sql.NullTime
	var excludedDoctors, excludedServices pq.StringArray

	err := row.Scan(
		&s.ID, &s.UserIdentifier, &s.ClinicID, &channel, &s.PatientID,
		&s.State.FlowState, &s.State.TurnStatus, &pendingAction, &pendingSince, &episode, &controlMode,
		&excludedDoctors, &excludedServices,
		&s.Constraints.DesiredService, &s.Constraints.DesiredServiceID,
		&s.Constraints.DesiredDoctor, &s.Constraints.DesiredDoctorID,
		&windowStart, &windowEnd, &s.Constraints.TimeWindowLabel,
		&constraintsUpdated, &s.Language, &s.UnreadForHumanCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("convstore: scan session: %w", err)
	}

	s.Channel = Channel(channel)
	s.State.PendingAction = convstate.PendingAction(pendingAction)
	s.State.EpisodeType = convstate.EpisodeType(episode)
	s.State.ControlMode = convstate.ControlMode(controlMode)
	s.Constraints.ExcludedDoctors = []string(excludedDoctors)
	s.Constraints.ExcludedServices = []string(excludedServices)
	if pendingSince.Valid {
		t := pendingSince.Time
		s.State.PendingSince = &t
	}
	if windowStart.Valid {
		t := windowStart.Time
		s.Constraints.TimeWindowStart = &t
	}
	if windowEnd.Valid {
		t := windowEnd.Time
		s.Constraints.TimeWindowEnd = &t
	}
	if constraintsUpdated.Valid {
		s.Constraints.UpdatedAt = constraintsUpdated.Time
	}
	return s, nil
}

// Save implements ConversationStore.
func (p *PostgresStore) Save(ctx context.Context, s Session) error {
	s.UpdatedAt = time.Now()
	res, err := p.db.ExecContext(ctx, `
		UPDATE sessions SET
			patient_id = $2, flow_state = $3, turn_status = $4, pending_action = $5,
			pending_since = $6, episode_type = $7, control_mode = $8,
			excluded_doctors = $9, excluded_services = $10, desired_service = $11,
			desired_service_id = $12, desired_doctor = $13, desired_doctor_id = $14,
			time_window_start = $15, time_window_end = $16, time_window_label = $17,
			constraints_updated_at = $18, language = $19, unread_for_human_count = $20,
			updated_at = $21
		WHERE id = $1`,
		s.ID, s.PatientID, string(s.State.FlowState), string(s.State.TurnStatus),
		string(s.State.PendingAction), s.State.PendingSince, string(s.State.EpisodeType), string(s.State.ControlMode),
		pq.Array(s.Constraints.ExcludedDoctors), pq.Array(s.Constraints.ExcludedServices),
		s.Constraints.DesiredService, s.Constraints.DesiredServiceID,
		s.Constraints.DesiredDoctor, s.Constraints.DesiredDoctorID,
		s.Constraints.TimeWindowStart, s.Constraints.TimeWindowEnd, s.Constraints.TimeWindowLabel,
		s.Constraints.UpdatedAt, s.Language, s.UnreadForHumanCount, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("convstore: save session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("convstore: save session rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage implements ConversationStore.
func (p *PostgresStore) AppendMessage(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, language, intent_tag, correlation_id, mem0_summary_ref, fast_path, pending_human_review, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, msg.Metadata.Language,
		msg.Metadata.IntentTag, msg.Metadata.CorrelationID, msg.Metadata.Mem0SummaryRef, msg.Metadata.FastPath,
		msg.Metadata.PendingHumanReview, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("convstore: append message: %w", err)
	}
	return nil
}

// History implements ConversationStore.
func (p *PostgresStore) History(ctx context.Context, sessionID string, opts HistoryOptions) ([]Message, error) {
	query := `SELECT m.id, m.session_id, m.role, m.content, m.language, m.intent_tag, m.correlation_id, m.mem0_summary_ref, m.fast_path, m.pending_human_review, m.created_at
		FROM messages m`
	args := []any{sessionID}

	if opts.IncludeAllSessions {
		query += ` JOIN sessions s ON s.id = m.session_id
			WHERE s.user_identifier = (SELECT user_identifier FROM sessions WHERE id = $1)
			  AND s.clinic_id = (SELECT clinic_id FROM sessions WHERE id = $1)`
	} else {
		query += ` WHERE m.session_id = $1`
	}
	query += ` ORDER BY m.created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("convstore: query history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.Metadata.Language,
			&m.Metadata.IntentTag, &m.Metadata.CorrelationID, &m.Metadata.Mem0SummaryRef, &m.Metadata.FastPath,
			&m.Metadata.PendingHumanReview, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("convstore: scan message: %w", err)
		}
		m.Role = Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("convstore: iterate history: %w", err)
	}

	// Reverse to oldest-first; the DESC query lets LIMIT keep the most recent.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close implements ConversationStore.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
