package app

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"reqtrack/api/internal/auth"
	"reqtrack/api/internal/authpw"
	"reqtrack/api/internal/blob"
	"reqtrack/api/internal/config"
	"reqtrack/api/internal/email"
	"reqtrack/api/internal/export"
	"reqtrack/api/internal/search"
	"reqtrack/api/internal/store"
	"reqtrack/api/internal/story"
	"reqtrack/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type CreateStoryInput struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Assignee           string   `json:"assignee"`
	Status             string   `json:"status"`
	Tags               []string `json:"tags"`
	StoryPoints        *int     `json:"storyPoints"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
}

type UpdateStoryInput struct {
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Assignee           string               `json:"assignee"`
	Status             string               `json:"status"`
	Tags               []string             `json:"tags"`
	StoryPoints        *int                 `json:"storyPoints"`
	AcceptanceCriteria []string             `json:"acceptanceCriteria"`
	Activity           []story.ActivityItem `json:"activity"`
}

type dataStore interface {
	CreateStory(context.Context, store.Story) (store.Story, error)
	GetStory(context.Context, int64) (store.Story, error)
	ListStories(context.Context, store.StoryFilter) ([]store.Story, error)
	SaveStory(context.Context, store.Story) error
	GetUserByID(context.Context, int64) (store.User, error)
	GetUserByUsername(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	InsertAttachment(context.Context, store.Attachment) (store.Attachment, error)
	ListAttachments(context.Context, int64) ([]store.Attachment, error)
	Ping(context.Context) error
}

// sessionStore holds refresh sessions. Redis when configured, Postgres
// otherwise; both implementations key by token hash.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// BlobStore stores attachment payloads. Nil when object storage is not
// configured.
type BlobStore interface {
	Put(ctx context.Context, storyID int64, filename, contentType string, size int64, r io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

var _ BlobStore = (*blob.MinioStore)(nil)

type Service struct {
	store    dataStore
	sessions sessionStore
	authpw   *authpw.Service
	search   *search.Service
	email    *email.Service
	export   *export.Service
	blob     BlobStore
	cfg      config.Config
	now      story.Clock
}

func NewService(st dataStore, sessions sessionStore, authSvc *authpw.Service, searchSvc *search.Service, emailSvc *email.Service, exportSvc *export.Service, blobStore BlobStore, cfg config.Config) *Service {
	return &Service{
		store:    st,
		sessions: sessions,
		authpw:   authSvc,
		search:   searchSvc,
		email:    emailSvc,
		export:   exportSvc,
		blob:     blobStore,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Register creates a user account and sends the welcome email when SMTP is
// configured.
func (s *Service) Register(ctx context.Context, req authpw.RegisterRequest) (store.User, error) {
	user, err := s.authpw.Register(ctx, req)
	if err != nil {
		switch err {
		case authpw.ErrEmailTaken:
			return store.User{}, domainError(http.StatusConflict, "EMAIL_EXISTS", "Email already registered", nil)
		case authpw.ErrUsernameTaken:
			return store.User{}, domainError(http.StatusConflict, "USERNAME_EXISTS", "Username already taken", nil)
		default:
			return store.User{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		}
	}

	if s.email != nil && s.email.IsConfigured() {
		go func(to, name string) {
			if err := s.email.SendWelcomeEmail(to, name); err != nil {
				log.Printf("email: welcome mail to %s: %v", to, err)
			}
		}(user.Email, user.FirstName)
	}

	return user, nil
}

// Login verifies credentials and issues an access token plus a refresh token.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.authpw.SignIn(ctx, emailAddr, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a fresh
// session is issued for its user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.Username,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Username,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Username,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, session Session) (store.User, error) {
	return s.store.GetUserByID(ctx, session.UserID)
}

// CreateStory validates required fields, applies defaults, and persists a new
// story attributed to the session user.
func (s *Service) CreateStory(ctx context.Context, session Session, input CreateStoryInput) (store.Story, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return store.Story{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if description == "" {
		return store.Story{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "description is required", nil)
	}

	assignee := strings.TrimSpace(input.Assignee)
	if assignee == "" {
		assignee = story.DefaultAssignee
	}
	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = story.DefaultStatus
	}

	rec, err := s.store.CreateStory(ctx, store.Story{
		Title:              title,
		Description:        description,
		Assignee:           assignee,
		Status:             status,
		Tags:               story.JoinTags(input.Tags),
		StoryPoints:        input.StoryPoints,
		AcceptanceCriteria: input.AcceptanceCriteria,
		CreatedBy:          session.UserName,
	})
	if err != nil {
		return store.Story{}, err
	}

	s.indexStory(rec)
	s.notifyAssignee(ctx, rec, session.UserName)
	return rec, nil
}

func (s *Service) GetStory(ctx context.Context, id int64) (store.Story, error) {
	return s.store.GetStory(ctx, id)
}

// ListStories parses date bounds and delegates filtering to the store. All
// supplied predicates are conjoined.
func (s *Service) ListStories(ctx context.Context, assignee, status, tag, createdBy, startDate, endDate, searchTerm string) ([]store.Story, error) {
	filter := store.StoryFilter{
		Assignee:  assignee,
		Status:    status,
		Tag:       tag,
		CreatedBy: createdBy,
		Search:    searchTerm,
	}

	if startDate != "" {
		t, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "startDate must be YYYY-MM-DD", nil)
		}
		filter.StartDate = &t
	}
	if endDate != "" {
		t, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "endDate must be YYYY-MM-DD", nil)
		}
		// Inclusive upper bound covers the whole day
		eod := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndDate = &eod
	}

	return s.store.ListStories(ctx, filter)
}

// UpdateStory is the diff-and-audit operation: load the record, apply the
// field diff, merge manual comments, and save fields plus appended activity
// atomically.
func (s *Service) UpdateStory(ctx context.Context, session Session, id int64, input UpdateStoryInput) (store.Story, error) {
	if strings.TrimSpace(input.Title) == "" {
		return store.Story{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if strings.TrimSpace(input.Description) == "" {
		return store.Story{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "description is required", nil)
	}

	old, err := s.store.GetStory(ctx, id)
	if err != nil {
		return store.Story{}, err
	}

	next := story.ApplyUpdate(old, story.Update{
		Title:              input.Title,
		Description:        input.Description,
		Assignee:           input.Assignee,
		Status:             input.Status,
		Tags:               input.Tags,
		StoryPoints:        input.StoryPoints,
		AcceptanceCriteria: input.AcceptanceCriteria,
	}, session.UserName, s.now)

	next = story.MergeComments(next, input.Activity, session.UserName, s.now)

	if err := s.store.SaveStory(ctx, next); err != nil {
		return store.Story{}, err
	}

	s.indexStory(next)
	if next.Assignee != old.Assignee {
		s.notifyAssignee(ctx, next, session.UserName)
	}
	return next, nil
}

// Workspace returns the status summary for the session user's assigned
// stories.
func (s *Service) Workspace(ctx context.Context, session Session) (story.Summary, error) {
	stories, err := s.store.ListStories(ctx, store.StoryFilter{Assignee: session.UserName})
	if err != nil {
		return story.Summary{}, err
	}
	return story.Summarize(session.UserName, stories), nil
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) ExportStory(ctx context.Context, req export.Request) (*export.Result, error) {
	result, err := s.export.Export(ctx, req)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "PDF export is not available", nil)
		}
		return nil, err
	}
	return result, nil
}

// ExportStoryHTML renders the printable story page without going through
// headless Chrome.
func (s *Service) ExportStoryHTML(ctx context.Context, id int64, includeActivity bool) (string, error) {
	rec, err := s.store.GetStory(ctx, id)
	if err != nil {
		return "", err
	}
	return export.RenderStoryHTML(export.BuildTemplateData(rec, includeActivity))
}

// UploadAttachment streams an attachment payload to object storage and
// records its metadata.
func (s *Service) UploadAttachment(ctx context.Context, session Session, storyID int64, filename, contentType string, size int64, r io.Reader) (store.Attachment, error) {
	if s.blob == nil {
		return store.Attachment{}, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	if _, err := s.store.GetStory(ctx, storyID); err != nil {
		return store.Attachment{}, err
	}

	key, err := s.blob.Put(ctx, storyID, filename, contentType, size, r)
	if err != nil {
		return store.Attachment{}, err
	}

	return s.store.InsertAttachment(ctx, store.Attachment{
		StoryID:     storyID,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   size,
		ObjectKey:   key,
		UploadedBy:  session.UserName,
	})
}

func (s *Service) ListAttachments(ctx context.Context, storyID int64) ([]store.Attachment, error) {
	if _, err := s.store.GetStory(ctx, storyID); err != nil {
		return nil, err
	}
	return s.store.ListAttachments(ctx, storyID)
}

func (s *Service) indexStory(rec store.Story) {
	if s.search == nil {
		return
	}
	s.search.IndexStory(search.StoryRecord{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Assignee:    rec.Assignee,
		Status:      rec.Status,
		Tags:        rec.Tags,
	})
}

// notifyAssignee emails the assigned user when they exist and email is
// configured. Best effort.
func (s *Service) notifyAssignee(ctx context.Context, rec store.Story, actor string) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}
	if rec.Assignee == "" || rec.Assignee == story.DefaultAssignee || rec.Assignee == actor {
		return
	}
	user, err := s.store.GetUserByUsername(ctx, rec.Assignee)
	if err != nil {
		return
	}
	go func() {
		if err := s.email.SendAssignmentEmail(user.Email, user.FirstName, rec.ID, rec.Title, actor); err != nil {
			log.Printf("email: assignment mail to %s: %v", user.Email, err)
		}
	}()
}
