package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"salesportal/internal/domain"
)

type AuthManager struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	users     map[string]credential
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
	UpdateUserBranch(ctx context.Context, username string, storeID string, branchLabel string) error
}

type credential struct {
	password    string
	role        string
	storeID     string
	branchLabel string
	active      bool
	created     time.Time
}

type portalCustomClaims struct {
	jwtlib.RegisteredClaims
	Role    string `json:"role"`
	StoreID string `json:"store_id,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		users:     make(map[string]credential),
	}
	// context.Background() is appropriate here because this is a startup operation
	// that runs before any request context exists.
	manager.bootstrapUsers(context.Background())
	return manager
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	// TODO: bootstrapUsers is called on every login to pick up users added outside
	// this process. Fine for this traffic level, but the call should carry a bounded
	// context instead of context.Background() so a slow user store cannot hang login.
	a.bootstrapUsers(context.Background())
	username := strings.ToLower(strings.TrimSpace(req.Username))
	a.mu.RLock()
	cred, ok := a.users[username]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	if !verifyPassword(cred.password, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !cred.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(username, cred, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		StoreID:     cred.storeID,
		Branch:      cred.branchLabel,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &portalCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{
		Username:    sub,
		Role:        claims.Role,
		StoreID:     claims.StoreID,
		BranchLabel: claims.Branch,
	}, nil
}

func (a *AuthManager) sign(username string, cred credential, expiresAt time.Time) (string, error) {
	claims := portalCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "salesportal",
		},
		Role:    cred.role,
		StoreID: cred.storeID,
		Branch:  cred.branchLabel,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateEncoder(req domain.EncoderCreateRequest) (domain.UserAccount, error) {
	// context.Background() is correct here: CreateEncoder is an admin operation that
	// does not carry a request context through the AuthManager API.
	a.bootstrapUsers(context.Background())
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(username) < 4 {
		return domain.UserAccount{}, fmt.Errorf("username must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.UserAccount{}, fmt.Errorf("username must not contain spaces")
	}
	if strings.TrimSpace(req.Password) == "" || len(req.Password) < 6 {
		return domain.UserAccount{}, fmt.Errorf("password must be at least 6 characters")
	}
	storeID := strings.TrimSpace(req.StoreID)
	branchLabel := strings.TrimSpace(req.BranchLabel)
	if storeID == "" || branchLabel == "" {
		return domain.UserAccount{}, fmt.Errorf("store_id and branch_label are required")
	}

	a.mu.RLock()
	_, exists := a.users[username]
	a.mu.RUnlock()
	if exists {
		return domain.UserAccount{}, fmt.Errorf("username already exists")
	}

	now := time.Now().UTC()
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("failed to hash password")
	}

	if a.userStore != nil {
		err := a.userStore.CreateUser(context.Background(), domain.UserAccount{
			Username:     username,
			PasswordHash: passwordHash,
			Role:         "encoder",
			StoreID:      storeID,
			BranchLabel:  branchLabel,
			Active:       true,
			CreatedAt:    now,
		})
		if err != nil {
			return domain.UserAccount{}, err
		}
	}

	a.mu.Lock()
	a.users[username] = credential{
		password:    passwordHash,
		role:        "encoder",
		storeID:     storeID,
		branchLabel: branchLabel,
		active:      true,
		created:     now,
	}
	a.mu.Unlock()

	return domain.UserAccount{
		Username:    username,
		Role:        "encoder",
		StoreID:     storeID,
		BranchLabel: branchLabel,
		Active:      true,
		CreatedAt:   now,
	}, nil
}

func (a *AuthManager) ListEncoders() []domain.UserAccount {
	// context.Background() is correct here: ListEncoders is an admin operation that
	// does not carry a request context through the AuthManager API.
	a.bootstrapUsers(context.Background())
	a.mu.RLock()
	result := make([]domain.UserAccount, 0, len(a.users))
	for username, user := range a.users {
		if user.role != "encoder" {
			continue
		}
		result = append(result, domain.UserAccount{
			Username:    username,
			Role:        user.role,
			StoreID:     user.storeID,
			BranchLabel: user.branchLabel,
			Active:      user.active,
			CreatedAt:   user.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result
}

// UpdateBranch reassigns an encoder to another branch. Existing tokens keep
// the old assignment until they expire.
func (a *AuthManager) UpdateBranch(username string, req domain.BranchUpdateRequest) (domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	storeID := strings.TrimSpace(req.StoreID)
	branchLabel := strings.TrimSpace(req.BranchLabel)
	if username == "" || storeID == "" || branchLabel == "" {
		return domain.UserAccount{}, fmt.Errorf("username, store_id and branch_label are required")
	}

	a.mu.Lock()
	cred, ok := a.users[username]
	if !ok {
		a.mu.Unlock()
		return domain.UserAccount{}, fmt.Errorf("user not found")
	}
	cred.storeID = storeID
	cred.branchLabel = branchLabel
	a.users[username] = cred
	a.mu.Unlock()

	if a.userStore != nil {
		if err := a.userStore.UpdateUserBranch(context.Background(), username, storeID, branchLabel); err != nil {
			return domain.UserAccount{}, err
		}
	}

	return domain.UserAccount{
		Username:    username,
		Role:        cred.role,
		StoreID:     storeID,
		BranchLabel: branchLabel,
		Active:      cred.active,
		CreatedAt:   cred.created,
	}, nil
}

// bootstrapUsers loads user accounts from the user store into the in-memory
// credential cache. It also upgrades any legacy plain-text passwords to bcrypt
// hashes in the store. The provided ctx is passed through to all store calls.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil || len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		username := strings.ToLower(strings.TrimSpace(user.Username))
		if username == "" {
			continue
		}
		password := user.PasswordHash
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				_ = a.userStore.UpdateUserPassword(ctx, username, hashed)
			}
		}
		a.users[username] = credential{
			password:    password,
			role:        user.Role,
			storeID:     user.StoreID,
			branchLabel: user.BranchLabel,
			active:      user.Active,
			created:     user.CreatedAt,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
