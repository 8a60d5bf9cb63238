package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"reqtrack/api/internal/authpw"
	"reqtrack/api/internal/config"
	"reqtrack/api/internal/export"
	"reqtrack/api/internal/store"
)

type fakeStore struct {
	createStoryFn          func(context.Context, store.Story) (store.Story, error)
	getStoryFn             func(context.Context, int64) (store.Story, error)
	listStoriesFn          func(context.Context, store.StoryFilter) ([]store.Story, error)
	saveStoryFn            func(context.Context, store.Story) error
	getUserByIDFn          func(context.Context, int64) (store.User, error)
	getUserByUsernameFn    func(context.Context, string) (store.User, error)
	getUserByEmailFn       func(context.Context, string) (store.User, error)
	createUserFn           func(context.Context, store.User) (store.User, error)
	revokeAccessTokenFn    func(context.Context, string, time.Time) error
	isAccessTokenRevokedFn func(context.Context, string) (bool, error)
	saveRefreshFn          func(context.Context, string, store.User, time.Time) error
	lookupRefreshFn        func(context.Context, string) (store.User, error)
	revokeRefreshFn        func(context.Context, string) error
	insertAttachmentFn     func(context.Context, store.Attachment) (store.Attachment, error)
	listAttachmentsFn      func(context.Context, int64) ([]store.Attachment, error)
}

func (f *fakeStore) CreateStory(ctx context.Context, rec store.Story) (store.Story, error) {
	if f.createStoryFn != nil {
		return f.createStoryFn(ctx, rec)
	}
	rec.ID = 1
	rec.CreatedOn = time.Now()
	return rec, nil
}

func (f *fakeStore) GetStory(ctx context.Context, id int64) (store.Story, error) {
	if f.getStoryFn != nil {
		return f.getStoryFn(ctx, id)
	}
	return store.Story{}, sql.ErrNoRows
}

func (f *fakeStore) ListStories(ctx context.Context, filter store.StoryFilter) ([]store.Story, error) {
	if f.listStoriesFn != nil {
		return f.listStoriesFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeStore) SaveStory(ctx context.Context, rec store.Story) error {
	if f.saveStoryFn != nil {
		return f.saveStoryFn(ctx, rec)
	}
	return nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	if f.getUserByUsernameFn != nil {
		return f.getUserByUsernameFn(ctx, username)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) CreateUser(ctx context.Context, user store.User) (store.User, error) {
	if f.createUserFn != nil {
		return f.createUserFn(ctx, user)
	}
	user.ID = 1
	user.IsActive = true
	return user, nil
}

func (f *fakeStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	if f.revokeAccessTokenFn != nil {
		return f.revokeAccessTokenFn(ctx, jti, exp)
	}
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isAccessTokenRevokedFn != nil {
		return f.isAccessTokenRevokedFn(ctx, jti)
	}
	return false, nil
}

func (f *fakeStore) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	if f.saveRefreshFn != nil {
		return f.saveRefreshFn(ctx, tokenHash, user, expiresAt)
	}
	return nil
}

func (f *fakeStore) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	if f.lookupRefreshFn != nil {
		return f.lookupRefreshFn(ctx, tokenHash)
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if f.revokeRefreshFn != nil {
		return f.revokeRefreshFn(ctx, tokenHash)
	}
	return nil
}

func (f *fakeStore) InsertAttachment(ctx context.Context, att store.Attachment) (store.Attachment, error) {
	if f.insertAttachmentFn != nil {
		return f.insertAttachmentFn(ctx, att)
	}
	att.ID = 1
	return att, nil
}

func (f *fakeStore) ListAttachments(ctx context.Context, storyID int64) ([]store.Attachment, error) {
	if f.listAttachmentsFn != nil {
		return f.listAttachmentsFn(ctx, storyID)
	}
	return nil, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func testConfig() config.Config {
	return config.Config{
		JWTSecret:  "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
}

func newTestService(fs *fakeStore) *Service {
	return NewService(fs, fs, authpw.NewService(fs), nil, nil, export.NewService(fs), nil, testConfig())
}

func testUser() store.User {
	return store.User{ID: 7, Username: "bob", FirstName: "Bob", Email: "bob@example.com", IsActive: true}
}

func TestRefreshRotatesToken(t *testing.T) {
	user := testUser()
	saved := make(map[string]store.User)
	fs := &fakeStore{
		saveRefreshFn: func(_ context.Context, hash string, u store.User, _ time.Time) error {
			saved[hash] = u
			return nil
		},
		lookupRefreshFn: func(_ context.Context, hash string) (store.User, error) {
			if u, ok := saved[hash]; ok {
				return u, nil
			}
			return store.User{}, sql.ErrNoRows
		},
		revokeRefreshFn: func(_ context.Context, hash string) error {
			delete(saved, hash)
			return nil
		},
	}
	svc := newTestService(fs)

	first, err := svc.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}

	second, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The original token is revoked; a second use must fail.
	if _, err := svc.Refresh(context.Background(), first.RefreshToken); err == nil {
		t.Fatal("expected reuse of rotated refresh token to fail")
	}
}

func TestLogoutRevokesAccessAndRefresh(t *testing.T) {
	var revokedJTI, revokedRefresh bool
	fs := &fakeStore{
		revokeAccessTokenFn: func(_ context.Context, jti string, _ time.Time) error {
			if jti != "" {
				revokedJTI = true
			}
			return nil
		},
		revokeRefreshFn: func(context.Context, string) error {
			revokedRefresh = true
			return nil
		},
	}
	svc := newTestService(fs)

	session := Session{JTI: "jti_x", ExpiresAt: time.Now().Add(time.Hour)}
	if err := svc.Logout(context.Background(), session, "some-refresh-token"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if !revokedJTI {
		t.Error("access token jti was not revoked")
	}
	if !revokedRefresh {
		t.Error("refresh session was not revoked")
	}
}

func TestSessionFromTokenRejectsRevokedJTI(t *testing.T) {
	user := testUser()
	fs := &fakeStore{
		getUserByIDFn: func(context.Context, int64) (store.User, error) { return user, nil },
		isAccessTokenRevokedFn: func(context.Context, string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(fs)

	session, err := svc.issueSession(context.Background(), user)
	if err != nil {
		t.Fatalf("issueSession() error = %v", err)
	}
	if _, err := svc.SessionFromToken(context.Background(), session.Token); err == nil {
		t.Fatal("expected revoked token to be rejected")
	}
}

func TestCreateStoryRequiresTitleAndDescription(t *testing.T) {
	svc := newTestService(&fakeStore{})
	session := Session{UserName: "bob"}

	if _, err := svc.CreateStory(context.Background(), session, CreateStoryInput{Description: "d"}); err == nil {
		t.Fatal("expected missing title to fail")
	}
	if _, err := svc.CreateStory(context.Background(), session, CreateStoryInput{Title: "t"}); err == nil {
		t.Fatal("expected missing description to fail")
	}
}

func TestCreateStoryAppliesDefaults(t *testing.T) {
	var created store.Story
	fs := &fakeStore{
		createStoryFn: func(_ context.Context, rec store.Story) (store.Story, error) {
			created = rec
			rec.ID = 11
			return rec, nil
		},
	}
	svc := newTestService(fs)

	rec, err := svc.CreateStory(context.Background(), Session{UserName: "alice"}, CreateStoryInput{
		Title:       "Add rate limiting",
		Description: "Protect the API from abuse",
		Tags:        []string{" alpha ", "beta", ""},
	})
	if err != nil {
		t.Fatalf("CreateStory() error = %v", err)
	}
	if rec.ID != 11 {
		t.Errorf("expected store-assigned id, got %d", rec.ID)
	}
	if created.Assignee != "Unassigned" {
		t.Errorf("expected default assignee, got %q", created.Assignee)
	}
	if created.Status != "In Progress" {
		t.Errorf("expected default status, got %q", created.Status)
	}
	if created.Tags != "alpha,beta" {
		t.Errorf("expected normalized tags, got %q", created.Tags)
	}
	if created.CreatedBy != "alice" {
		t.Errorf("expected creator from session, got %q", created.CreatedBy)
	}
}

func TestListStoriesParsesDateBounds(t *testing.T) {
	var got store.StoryFilter
	fs := &fakeStore{
		listStoriesFn: func(_ context.Context, filter store.StoryFilter) ([]store.Story, error) {
			got = filter
			return nil, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.ListStories(context.Background(), "bob", "Done", "", "", "2025-01-01", "2025-01-31", ""); err != nil {
		t.Fatalf("ListStories() error = %v", err)
	}
	if got.StartDate == nil || !got.StartDate.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %v", got.StartDate)
	}
	if got.EndDate == nil || got.EndDate.Day() != 31 || got.EndDate.Hour() != 23 {
		t.Errorf("end date should cover the whole day, got %v", got.EndDate)
	}

	if _, err := svc.ListStories(context.Background(), "", "", "", "", "January 1", "", ""); err == nil {
		t.Fatal("expected malformed start date to fail")
	}
}

func TestUpdateStorySavesDiffAndActivity(t *testing.T) {
	existing := store.Story{
		ID:          7,
		Title:       "Implement login flow",
		Description: "As a user I want to sign in.",
		Assignee:    "bob",
		Status:      "In Progress",
		Tags:        "auth",
	}
	var saved store.Story
	fs := &fakeStore{
		getStoryFn: func(context.Context, int64) (store.Story, error) { return existing, nil },
		saveStoryFn: func(_ context.Context, rec store.Story) error {
			saved = rec
			return nil
		},
	}
	svc := newTestService(fs)

	input := UpdateStoryInput{
		Title:       existing.Title,
		Description: existing.Description,
		Assignee:    existing.Assignee,
		Status:      "Done",
		Tags:        []string{"auth"},
	}
	rec, err := svc.UpdateStory(context.Background(), Session{UserName: "carol"}, 7, input)
	if err != nil {
		t.Fatalf("UpdateStory() error = %v", err)
	}

	if len(saved.Activity) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(saved.Activity))
	}
	entry := saved.Activity[0]
	if entry.User != "carol" {
		t.Errorf("entry attributed to %q, want carol", entry.User)
	}
	if !strings.HasSuffix(entry.Action, "carol: Changed status from 'In Progress' to 'Done'") {
		t.Errorf("unexpected action %q", entry.Action)
	}
	if rec.Status != "Done" {
		t.Errorf("returned record status %q, want Done", rec.Status)
	}

	// Replaying the same payload against the saved record adds nothing.
	fs.getStoryFn = func(context.Context, int64) (store.Story, error) { return saved, nil }
	rec2, err := svc.UpdateStory(context.Background(), Session{UserName: "carol"}, 7, input)
	if err != nil {
		t.Fatalf("UpdateStory() replay error = %v", err)
	}
	if len(rec2.Activity) != 1 {
		t.Errorf("replay appended entries: %d", len(rec2.Activity))
	}
}

func TestWorkspaceFiltersByAssignee(t *testing.T) {
	var got store.StoryFilter
	fs := &fakeStore{
		listStoriesFn: func(_ context.Context, filter store.StoryFilter) ([]store.Story, error) {
			got = filter
			return []store.Story{
				{ID: 1, Assignee: "bob", Status: "Done"},
				{ID: 2, Assignee: "bob", Status: "In Progress"},
				{ID: 3, Assignee: "bob", Status: "Done"},
			}, nil
		},
	}
	svc := newTestService(fs)

	summary, err := svc.Workspace(context.Background(), Session{UserName: "bob"})
	if err != nil {
		t.Fatalf("Workspace() error = %v", err)
	}
	if got.Assignee != "bob" {
		t.Errorf("store filter assignee %q, want bob", got.Assignee)
	}
	if summary.TotalStories != 3 {
		t.Errorf("total %d, want 3", summary.TotalStories)
	}
	if summary.ByStatus.Get("Done") != 2 || summary.ByStatus.Get("In Progress") != 1 {
		t.Errorf("unexpected status counts: Done=%d InProgress=%d",
			summary.ByStatus.Get("Done"), summary.ByStatus.Get("In Progress"))
	}
}

func TestUploadAttachmentWithoutBlobStore(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.UploadAttachment(context.Background(), Session{UserName: "bob"}, 1, "a.txt", "text/plain", 3, nil)
	if err == nil {
		t.Fatal("expected error when blob store is not configured")
	}
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 503 {
		t.Fatalf("expected 503 domain error, got %v", err)
	}
}
