package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/planhub/planhub/internal/platform/auth"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRefresh     = errors.New("invalid refresh token")
	ErrForbidden          = errors.New("forbidden")
	ErrNoWorkspace        = errors.New("no workspace selected")
)

const refreshTokenTTL = 30 * 24 * time.Hour

// Session is what login, refresh and workspace selection hand back to
// the HTTP layer. Organization and Workspace stay empty until the user
// has picked a workspace.
type Session struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token,omitempty"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	OrganizationID string `json:"organization_id,omitempty"`
	WorkspaceID    string `json:"workspace_id,omitempty"`
}

type Service struct {
	Repo  Repository
	Auth  auth.Manager
	Now   func() time.Time
	NewID func() string
}

func NewService(repo Repository, authManager auth.Manager) *Service {
	return &Service{
		Repo:  repo,
		Auth:  authManager,
		Now:   time.Now,
		NewID: nuid.Next,
	}
}

func (s *Service) Register(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return Session{}, ErrInvalidInput
	}
	if _, err := s.Repo.FindUserByUsername(ctx, username); err == nil {
		return Session{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{ID: s.NewID(), Username: username, PasswordHash: string(hash)}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.issueSession(ctx, user, "", "")
}

func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.Repo.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup username: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issueSession(ctx, user, "", "")
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	stored, err := s.Repo.FindRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidRefresh
		}
		return Session{}, fmt.Errorf("lookup refresh token: %w", err)
	}
	if err := s.Repo.RevokeRefreshToken(ctx, stored.TokenID); err != nil {
		return Session{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	user, err := s.Repo.FindUserByID(ctx, stored.UserID)
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	return s.issueSession(ctx, user, "", "")
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	stored, err := s.Repo.FindRefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	return s.Repo.RevokeRefreshToken(ctx, stored.TokenID)
}

func (s *Service) CreateOrganization(ctx context.Context, actorUserID, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, ErrInvalidInput
	}
	org := Organization{ID: s.NewID(), Name: name}
	if err := s.Repo.CreateOrganization(ctx, org, actorUserID); err != nil {
		return Organization{}, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

func (s *Service) AddMember(ctx context.Context, actorUserID, orgID, username, role string) error {
	if role != RoleAdmin && role != RoleMember {
		return ErrInvalidInput
	}
	actorRole, err := s.Repo.GetMembershipRole(ctx, actorUserID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("lookup membership: %w", err)
	}
	if actorRole != RoleOwner && actorRole != RoleAdmin {
		return ErrForbidden
	}
	if err := s.Repo.AddMemberByUsernameWithRole(ctx, orgID, strings.TrimSpace(username), role); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *Service) ListOrganizations(ctx context.Context, userID string) ([]OrgMembership, error) {
	return s.Repo.ListOrganizationsForUser(ctx, userID)
}

func (s *Service) CreateWorkspace(ctx context.Context, actorUserID, orgID, name string) (Workspace, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workspace{}, ErrInvalidInput
	}
	role, err := s.Repo.GetMembershipRole(ctx, actorUserID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Workspace{}, ErrForbidden
		}
		return Workspace{}, fmt.Errorf("lookup membership: %w", err)
	}
	if role != RoleOwner && role != RoleAdmin {
		return Workspace{}, ErrForbidden
	}
	ws := Workspace{ID: s.NewID(), OrgID: orgID, Name: name}
	if err := s.Repo.CreateWorkspace(ctx, ws); err != nil {
		return Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

func (s *Service) ListWorkspaces(ctx context.Context, userID, orgID string) ([]Workspace, error) {
	if _, err := s.Repo.GetMembershipRole(ctx, userID, orgID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("lookup membership: %w", err)
	}
	return s.Repo.ListWorkspaces(ctx, orgID)
}

// SelectWorkspace reissues an access token scoped to the given
// workspace. Every plan and activity endpoint requires such a token.
func (s *Service) SelectWorkspace(ctx context.Context, userID, workspaceID string) (Session, error) {
	ws, err := s.Repo.FindWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("lookup workspace: %w", err)
	}
	if _, err := s.Repo.GetMembershipRole(ctx, userID, ws.OrgID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrForbidden
		}
		return Session{}, fmt.Errorf("lookup membership: %w", err)
	}
	user, err := s.Repo.FindUserByID(ctx, userID)
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	return s.issueSession(ctx, user, ws.OrgID, ws.ID)
}

// EnsureWorkspaceAccess verifies the user belongs to the workspace's
// organization and returns their role there.
func (s *Service) EnsureWorkspaceAccess(ctx context.Context, userID, workspaceID string) (string, error) {
	ws, err := s.Repo.FindWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrForbidden
		}
		return "", fmt.Errorf("lookup workspace: %w", err)
	}
	role, err := s.Repo.GetMembershipRole(ctx, userID, ws.OrgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrForbidden
		}
		return "", fmt.Errorf("lookup membership: %w", err)
	}
	return role, nil
}

func (s *Service) issueSession(ctx context.Context, user User, orgID, workspaceID string) (Session, error) {
	access, err := s.Auth.Sign(auth.Claims{
		Subject:     user.ID,
		Username:    user.Username,
		OrgID:       orgID,
		WorkspaceID: workspaceID,
	})
	if err != nil {
		return Session{}, fmt.Errorf("sign access token: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return Session{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refresh := hex.EncodeToString(raw)
	if err := s.Repo.CreateRefreshToken(ctx, RefreshToken{
		TokenID:   s.NewID(),
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: s.Now().Add(refreshTokenTTL),
	}); err != nil {
		return Session{}, fmt.Errorf("store refresh token: %w", err)
	}

	return Session{
		AccessToken:    access,
		RefreshToken:   refresh,
		UserID:         user.ID,
		Username:       user.Username,
		OrganizationID: orgID,
		WorkspaceID:    workspaceID,
	}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
