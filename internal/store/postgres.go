package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateStory inserts a story and returns it with the store-assigned id and
// creation timestamp filled in.
func (s *PostgresStore) CreateStory(ctx context.Context, story Story) (Story, error) {
	criteria, err := marshalCriteria(story.AcceptanceCriteria)
	if err != nil {
		return Story{}, err
	}
	activity, err := marshalActivity(story.Activity)
	if err != nil {
		return Story{}, err
	}

	const insertStory = `
		INSERT INTO stories (title, description, assignee, status, tags, acceptance_criteria, story_points, created_by, activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_on
	`
	err = s.db.QueryRowContext(ctx, insertStory,
		story.Title,
		story.Description,
		story.Assignee,
		story.Status,
		story.Tags,
		criteria,
		story.StoryPoints,
		story.CreatedBy,
		activity,
	).Scan(&story.ID, &story.CreatedOn)
	if err != nil {
		return Story{}, fmt.Errorf("insert story: %w", err)
	}
	return story, nil
}

func (s *PostgresStore) GetStory(ctx context.Context, id int64) (Story, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, assignee, status, tags, acceptance_criteria, story_points, created_by, created_on, activity
		FROM stories
		WHERE id = $1
	`, id)
	return scanStory(row)
}

// storyFilterConditions renders the filter's set predicates as SQL clauses
// with positional args. All predicates are conjoined by the caller. An
// all-numeric search token matches the id exactly; any other token is a
// case-insensitive title substring match.
func storyFilterConditions(filter StoryFilter) ([]string, []any) {
	var conditions []string
	var args []any
	argN := 1

	addCondition := func(clause string, value any) {
		conditions = append(conditions, fmt.Sprintf(clause, argN))
		args = append(args, value)
		argN++
	}

	if filter.Assignee != "" {
		addCondition("assignee = $%d", filter.Assignee)
	}
	if filter.Status != "" {
		addCondition("status = $%d", filter.Status)
	}
	if filter.Tag != "" {
		addCondition("tags ILIKE '%%' || $%d || '%%'", filter.Tag)
	}
	if filter.CreatedBy != "" {
		addCondition("created_by = $%d", filter.CreatedBy)
	}
	if filter.StartDate != nil {
		addCondition("created_on >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		addCondition("created_on <= $%d", *filter.EndDate)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		if id, err := strconv.ParseInt(search, 10, 64); err == nil {
			addCondition("id = $%d", id)
		} else {
			addCondition("title ILIKE '%%' || $%d || '%%'", search)
		}
	}

	return conditions, args
}

// ListStories applies every set predicate of the filter, conjoined.
func (s *PostgresStore) ListStories(ctx context.Context, filter StoryFilter) ([]Story, error) {
	conditions, args := storyFilterConditions(filter)

	query := `
		SELECT id, title, description, assignee, status, tags, acceptance_criteria, story_points, created_by, created_on, activity
		FROM stories
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	items := make([]Story, 0)
	for rows.Next() {
		story, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, story)
	}
	return items, rows.Err()
}

// SaveStory commits the mutable fields and the activity log in one UPDATE, so
// field changes and appended audit entries land atomically.
func (s *PostgresStore) SaveStory(ctx context.Context, story Story) error {
	criteria, err := marshalCriteria(story.AcceptanceCriteria)
	if err != nil {
		return err
	}
	activity, err := marshalActivity(story.Activity)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE stories
		SET title=$2, description=$3, assignee=$4, status=$5, tags=$6, acceptance_criteria=$7, story_points=$8, activity=$9
		WHERE id=$1
	`, story.ID, story.Title, story.Description, story.Assignee, story.Status, story.Tags, criteria, story.StoryPoints, activity)
	if err != nil {
		return fmt.Errorf("save story: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save story: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	const insertUser = `
		INSERT INTO users (username, first_name, last_name, email, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_on
	`
	err := s.db.QueryRowContext(ctx, insertUser,
		user.Username, user.FirstName, user.LastName, user.Email, user.PasswordHash,
	).Scan(&user.ID, &user.IsActive, &user.CreatedOn)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return s.getUser(ctx, `WHERE username = $1`, username)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, first_name, last_name, email, password_hash, is_active, created_on
		FROM users `+where,
		arg,
	).Scan(&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedOn)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user User, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, user.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.username, u.first_name, u.last_name, u.email, u.password_hash, u.is_active, u.created_on
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Email, &user.PasswordHash, &user.IsActive, &user.CreatedOn,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, att Attachment) (Attachment, error) {
	const insertAttachment = `
		INSERT INTO story_attachments (story_id, filename, content_type, size_bytes, object_key, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, uploaded_on
	`
	err := s.db.QueryRowContext(ctx, insertAttachment,
		att.StoryID, att.Filename, att.ContentType, att.SizeBytes, att.ObjectKey, att.UploadedBy,
	).Scan(&att.ID, &att.UploadedOn)
	if err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return att, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, storyID int64) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, story_id, filename, content_type, size_bytes, object_key, uploaded_by, uploaded_on
		FROM story_attachments
		WHERE story_id = $1
		ORDER BY id
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var att Attachment
		if err := rows.Scan(&att.ID, &att.StoryID, &att.Filename, &att.ContentType, &att.SizeBytes, &att.ObjectKey, &att.UploadedBy, &att.UploadedOn); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, att)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStory(row rowScanner) (Story, error) {
	var story Story
	var criteriaRaw, activityRaw []byte
	err := row.Scan(
		&story.ID,
		&story.Title,
		&story.Description,
		&story.Assignee,
		&story.Status,
		&story.Tags,
		&criteriaRaw,
		&story.StoryPoints,
		&story.CreatedBy,
		&story.CreatedOn,
		&activityRaw,
	)
	if err != nil {
		return Story{}, err
	}
	if len(criteriaRaw) > 0 {
		if err := json.Unmarshal(criteriaRaw, &story.AcceptanceCriteria); err != nil {
			return Story{}, fmt.Errorf("decode acceptance criteria: %w", err)
		}
	}
	if len(activityRaw) > 0 {
		if err := json.Unmarshal(activityRaw, &story.Activity); err != nil {
			return Story{}, fmt.Errorf("decode activity: %w", err)
		}
	}
	return story, nil
}

func marshalCriteria(criteria []string) ([]byte, error) {
	if criteria == nil {
		criteria = []string{}
	}
	data, err := json.Marshal(criteria)
	if err != nil {
		return nil, fmt.Errorf("encode acceptance criteria: %w", err)
	}
	return data, nil
}

func marshalActivity(activity []ActivityEntry) ([]byte, error) {
	if activity == nil {
		activity = []ActivityEntry{}
	}
	data, err := json.Marshal(activity)
	if err != nil {
		return nil, fmt.Errorf("encode activity: %w", err)
	}
	return data, nil
}
