package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/templui/sharebox/internal/kvstore"
	"github.com/templui/sharebox/internal/model"
	"github.com/templui/sharebox/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountBlocked     = errors.New("account is blocked")
	ErrIPNotAllowed       = errors.New("sign-in is not allowed from this address")
	ErrInvalidOTP         = errors.New("invalid verification code")
	ErrOTPExpired         = errors.New("verification code expired")
	ErrInvalidToken       = errors.New("invalid or expired session")
)

const (
	CookieName = "auth_token"

	activityTouchInterval = time.Minute
)

// LoginResult is either a session or, for two-factor accounts, a pending challenge.
type LoginResult struct {
	User        *model.User `json:"user,omitempty"`
	Token       string      `json:"-"`
	ExpiresAt   time.Time   `json:"expires_at,omitzero"`
	OTPRequired bool        `json:"otp_required"`
	Challenge   string      `json:"challenge,omitempty"`
}

type otpEntry struct {
	UserID    string    `json:"user_id"`
	Code      string    `json:"code"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AuthService struct {
	userRepository repository.UserRepository
	activity       ActivityRecorder
	emailService   *EmailService
	kv             kvstore.Store
	jwtSecret      string
	jwtExpiry      time.Duration
	otpExpiry      time.Duration
	otpMaxAttempts int
	attemptWindow  time.Duration
	cookieSecure   bool
}

func NewAuthService(
	userRepository repository.UserRepository,
	activity ActivityRecorder,
	emailService *EmailService,
	kv kvstore.Store,
	jwtSecret string,
	jwtExpiry time.Duration,
	otpExpiry time.Duration,
	otpMaxAttempts int,
	attemptWindow time.Duration,
	cookieSecure bool,
) *AuthService {
	return &AuthService{
		userRepository: userRepository,
		activity:       activity,
		emailService:   emailService,
		kv:             kv,
		jwtSecret:      jwtSecret,
		jwtExpiry:      jwtExpiry,
		otpExpiry:      otpExpiry,
		otpMaxAttempts: otpMaxAttempts,
		attemptWindow:  attemptWindow,
		cookieSecure:   cookieSecure,
	}
}

func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	username = strings.TrimSpace(username)

	user, err := s.userRepository.ByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.activity.RecordBestEffort(ctx, NewActivity(nil, model.ActivityCategoryAuth, "login_failed",
			fmt.Sprintf("Failed sign-in for unknown user %q", username)))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.IsBlocked {
		s.activity.RecordBestEffort(ctx, About(NewActivity(nil, model.ActivityCategoryAuth, "login_blocked",
			"Sign-in attempt on blocked account "+user.Username), user.ID))
		return nil, ErrAccountBlocked
	}

	if !user.IPAllowed(ip) {
		s.activity.RecordBestEffort(ctx, About(NewActivity(nil, model.ActivityCategoryAuth, "login_ip_denied",
			fmt.Sprintf("Sign-in for %s from disallowed address %s", user.Username, ip)), user.ID))
		return nil, ErrIPNotAllowed
	}

	err = comparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, s.registerFailure(ctx, user)
	}

	err = s.kv.Delete(loginAttemptsKey(user.ID))
	if err != nil {
		slog.Warn("failed to reset login attempts", "error", err, "user_id", user.ID)
	}

	if user.TwoFactorEnabled {
		challenge, err := s.startChallenge(ctx, user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{OTPRequired: true, Challenge: challenge}, nil
	}

	return s.openSession(ctx, user)
}

// registerFailure counts a wrong password and blocks the account once the
// user's limit is reached inside the attempt window.
func (s *AuthService) registerFailure(ctx context.Context, user *model.User) error {
	s.activity.RecordBestEffort(ctx, About(NewActivity(nil, model.ActivityCategoryAuth, "login_failed",
		"Wrong password for "+user.Username), user.ID))

	attempts, err := s.kv.Incr(loginAttemptsKey(user.ID), s.attemptWindow)
	if err != nil {
		slog.Error("failed to count login attempt", "error", err, "user_id", user.ID)
		return ErrInvalidCredentials
	}

	limit := user.MaxLoginAttempts
	if limit <= 0 {
		limit = model.DefaultMaxLoginAttempts
	}
	if attempts < int64(limit) {
		return ErrInvalidCredentials
	}

	err = s.userRepository.SetBlocked(ctx, user.ID, true)
	if err != nil {
		slog.Error("failed to block user", "error", err, "user_id", user.ID)
		return ErrInvalidCredentials
	}
	_ = s.kv.Delete(loginAttemptsKey(user.ID))

	s.activity.RecordBestEffort(ctx, About(NewActivity(nil, model.ActivityCategoryAuth, "account_blocked",
		fmt.Sprintf("Blocked %s after %d failed sign-in attempts", user.Username, attempts)), user.ID))
	slog.Warn("account blocked after failed sign-ins", "username", user.Username, "attempts", attempts)

	if user.Email != "" {
		err = s.emailService.SendAccountBlocked(ctx, user.Email, user.Username, int(attempts))
		if err != nil {
			slog.Warn("failed to send account blocked email", "error", err, "user_id", user.ID)
		}
	}
	return ErrAccountBlocked
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func otpKey(challenge string) string {
	return "otp:" + challenge
}

func (s *AuthService) startChallenge(ctx context.Context, user *model.User) (string, error) {
	code, err := generateOTP()
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	challenge, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}

	entry := otpEntry{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: time.Now().Add(s.otpExpiry),
	}
	err = s.saveOTP(challenge, entry)
	if err != nil {
		return "", err
	}

	err = s.emailService.SendLoginCode(ctx, user.Email, user.Username, code, s.otpExpiry)
	if err != nil {
		_ = s.kv.Delete(otpKey(challenge))
		return "", fmt.Errorf("failed to send verification code: %w", err)
	}

	s.activity.RecordBestEffort(ctx, About(NewActivity(nil, model.ActivityCategoryAuth, "otp_sent",
		"Sent verification code to "+user.Username), user.ID))
	return challenge, nil
}

func (s *AuthService) saveOTP(challenge string, entry otpEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return ErrOTPExpired
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.kv.Set(otpKey(challenge), data, ttl)
}

// VerifyOTP completes a two-factor sign-in. A challenge survives a limited
// number of wrong codes and is discarded after that.
func (s *AuthService) VerifyOTP(ctx context.Context, challenge, code, ip string) (*LoginResult, error) {
	data, err := s.kv.Get(otpKey(challenge))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrOTPExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read verification code: %w", err)
	}

	var entry otpEntry
	err = json.Unmarshal(data, &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to decode verification code: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(strings.TrimSpace(code))) != 1 {
		entry.Attempts++
		s.activity.RecordBestEffort(ctx, About(NewActivity(nil, model.ActivityCategoryAuth, "otp_failed",
			"Wrong verification code"), entry.UserID))

		if entry.Attempts >= s.otpMaxAttempts {
			_ = s.kv.Delete(otpKey(challenge))
			return nil, ErrOTPExpired
		}
		err = s.saveOTP(challenge, entry)
		if err != nil {
			return nil, err
		}
		return nil, ErrInvalidOTP
	}

	_ = s.kv.Delete(otpKey(challenge))

	user, err := s.userRepository.ByID(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}
	if user.IsBlocked {
		return nil, ErrAccountBlocked
	}
	if !user.IPAllowed(ip) {
		return nil, ErrIPNotAllowed
	}

	return s.openSession(ctx, user)
}

func (s *AuthService) openSession(ctx context.Context, user *model.User) (*LoginResult, error) {
	token, expiresAt, err := s.GenerateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	err = s.userRepository.TouchActivity(ctx, user.ID, time.Now().UTC())
	if err != nil {
		slog.Warn("failed to update last activity", "error", err, "user_id", user.ID)
	}

	s.activity.RecordBestEffort(ctx, About(NewActivity(user, model.ActivityCategoryAuth, "login", user.Username+" signed in"), user.ID))
	slog.Info("user signed in", "username", user.Username)

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) Logout(ctx context.Context, user *model.User) {
	s.activity.RecordBestEffort(ctx, About(NewActivity(user, model.ActivityCategoryAuth, "logout", user.Username+" signed out"), user.ID))
}

func (s *AuthService) sessionExpiry(user *model.User) time.Duration {
	if d := user.SessionTimeout(); d > 0 {
		return d
	}
	return s.jwtExpiry
}

func (s *AuthService) GenerateJWT(user *model.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.sessionExpiry(user))

	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// Authenticate resolves a session token to its user, rejecting blocked
// accounts and addresses outside the user's allow-list.
func (s *AuthService) Authenticate(ctx context.Context, tokenString, ip string) (*model.User, error) {
	claims, err := s.VerifyJWT(tokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if user.IsBlocked {
		return nil, ErrAccountBlocked
	}
	if !user.IPAllowed(ip) {
		return nil, ErrIPNotAllowed
	}

	now := time.Now().UTC()
	if user.LastActivityAt == nil || now.Sub(*user.LastActivityAt) > activityTouchInterval {
		err = s.userRepository.TouchActivity(ctx, user.ID, now)
		if err != nil {
			slog.Warn("failed to update last activity", "error", err, "user_id", user.ID)
		}
	}

	return user, nil
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
