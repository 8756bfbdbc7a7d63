package identity

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/planhub/planhub/internal/platform/auth"
)

type fakeRepo struct {
	users      map[string]User
	orgs       map[string]Organization
	members    map[string]string
	workspaces map[string]Workspace
	tokens     map[string]RefreshToken
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:      map[string]User{},
		orgs:       map[string]Organization{},
		members:    map[string]string{},
		workspaces: map[string]Workspace{},
		tokens:     map[string]RefreshToken{},
	}
}

func memberKey(orgID, userID string) string { return orgID + "/" + userID }

func (r *fakeRepo) EnsureSchema(ctx context.Context) error { return nil }

func (r *fakeRepo) CreateUser(ctx context.Context, user User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeRepo) FindUserByUsername(ctx context.Context, username string) (User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeRepo) FindUserByID(ctx context.Context, userID string) (User, error) {
	u, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) CreateOrganization(ctx context.Context, org Organization, creatorUserID string) error {
	r.orgs[org.ID] = org
	r.members[memberKey(org.ID, creatorUserID)] = RoleOwner
	return nil
}

func (r *fakeRepo) AddMemberByUsernameWithRole(ctx context.Context, orgID, username, role string) error {
	u, err := r.FindUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	r.members[memberKey(orgID, u.ID)] = role
	return nil
}

func (r *fakeRepo) GetMembershipRole(ctx context.Context, userID, orgID string) (string, error) {
	role, ok := r.members[memberKey(orgID, userID)]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func (r *fakeRepo) ListOrganizationsForUser(ctx context.Context, userID string) ([]OrgMembership, error) {
	var out []OrgMembership
	for id, org := range r.orgs {
		if role, ok := r.members[memberKey(id, userID)]; ok {
			out = append(out, OrgMembership{OrgID: id, OrgName: org.Name, Role: role})
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateWorkspace(ctx context.Context, ws Workspace) error {
	r.workspaces[ws.ID] = ws
	return nil
}

func (r *fakeRepo) FindWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	ws, ok := r.workspaces[workspaceID]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	return ws, nil
}

func (r *fakeRepo) ListWorkspaces(ctx context.Context, orgID string) ([]Workspace, error) {
	var out []Workspace
	for _, ws := range r.workspaces {
		if ws.OrgID == orgID {
			out = append(out, ws)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateRefreshToken(ctx context.Context, token RefreshToken) error {
	r.tokens[token.TokenHash] = token
	return nil
}

func (r *fakeRepo) FindRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	t, ok := r.tokens[tokenHash]
	if !ok || t.RevokedAt != nil {
		return RefreshToken{}, ErrNotFound
	}
	return t, nil
}

func (r *fakeRepo) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	for hash, t := range r.tokens {
		if t.TokenID == tokenID {
			now := time.Now()
			t.RevokedAt = &now
			r.tokens[hash] = t
		}
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	svc := NewService(repo, auth.NewManager("test-secret-key-0123456789abcdef", time.Hour))
	var seq int
	svc.NewID = func() string {
		seq++
		return "id-" + strconv.Itoa(seq)
	}
	return svc, repo
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" {
		t.Fatal("expected tokens on register")
	}
	if sess.WorkspaceID != "" {
		t.Fatalf("fresh session should have no workspace, got %q", sess.WorkspaceID)
	}

	if _, err := svc.Login(ctx, "alice", "wrong password!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	again, err := svc.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.Auth.Parse(again.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Username != "alice" {
		t.Fatalf("claims username = %q", claims.Username)
	}
}

func TestRegisterRejectsDuplicateAndShortPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob", "short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "long enough password"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "another password!"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "carol", "password123456")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	next, err := svc.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("reused refresh token should fail, got %v", err)
	}
}

func TestSelectWorkspaceScopesClaims(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, "dave", "password123456")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	org, err := svc.CreateOrganization(ctx, sess.UserID, "Acme")
	if err != nil {
		t.Fatalf("create org: %v", err)
	}
	ws, err := svc.CreateWorkspace(ctx, sess.UserID, org.ID, "Spring Events")
	if err != nil {
		t.Fatalf("create workspace: %v", err)
	}

	scoped, err := svc.SelectWorkspace(ctx, sess.UserID, ws.ID)
	if err != nil {
		t.Fatalf("select workspace: %v", err)
	}
	claims, err := svc.Auth.Parse(scoped.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.OrgID != org.ID || claims.WorkspaceID != ws.ID {
		t.Fatalf("claims not scoped: org=%q workspace=%q", claims.OrgID, claims.WorkspaceID)
	}
}

func TestSelectWorkspaceDeniesNonMembers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	owner, _ := svc.Register(ctx, "erin", "password123456")
	outsider, _ := svc.Register(ctx, "frank", "password123456")
	org, _ := svc.CreateOrganization(ctx, owner.UserID, "Acme")
	ws, _ := svc.CreateWorkspace(ctx, owner.UserID, org.ID, "Private")

	if _, err := svc.SelectWorkspace(ctx, outsider.UserID, ws.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.EnsureWorkspaceAccess(ctx, outsider.UserID, ws.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAddMemberRequiresAdminRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	owner, _ := svc.Register(ctx, "gina", "password123456")
	member, _ := svc.Register(ctx, "hank", "password123456")
	guest, _ := svc.Register(ctx, "iris", "password123456")
	org, _ := svc.CreateOrganization(ctx, owner.UserID, "Acme")

	if err := svc.AddMember(ctx, owner.UserID, org.ID, "hank", RoleMember); err != nil {
		t.Fatalf("owner add member: %v", err)
	}
	if err := svc.AddMember(ctx, member.UserID, org.ID, "iris", RoleMember); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member should not add members, got %v", err)
	}
	if err := svc.AddMember(ctx, owner.UserID, org.ID, "iris", "superuser"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown role should be rejected, got %v", err)
	}
	_ = guest
}

func TestLogoutRevokesRefresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, _ := svc.Register(ctx, "jack", "password123456")
	if err := svc.Logout(ctx, sess.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidRefresh) {
		t.Fatalf("revoked token should fail refresh, got %v", err)
	}
	// logging out twice stays quiet
	if err := svc.Logout(ctx, sess.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}
