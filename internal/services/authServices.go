package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/github"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"

	"folios/internal/config"
	"folios/internal/metrics"
	"folios/internal/models"
	"folios/internal/repositories"
	"folios/internal/utils"
)

const MaxAge = 86400 * 30

// Authenticator resolves a bearer token to the session it represents.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*models.Session, error) {
	session, err := utils.ParseJWT(a.secret, token)
	if err != nil {
		return nil, errors.Join(models.ErrUnauthenticated, err)
	}
	return session, nil
}

type AuthService interface {
	HandleLogin(ctx context.Context, u goth.User) (string, error)
}

type authService struct {
	userRepo repositories.UserRepository
	cfg      *config.Config
}

func NewAuthService(userRepo repositories.UserRepository, cfg *config.Config) AuthService {
	return &authService{userRepo: userRepo, cfg: cfg}
}

// InitializeGoth installs the cookie store used by gothic during the OAuth
// dance and registers every provider that has a client ID configured.
func InitializeGoth(cfg *config.Config) {
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))
	store.MaxAge(MaxAge)

	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.SecureCookies
	store.Options.SameSite = http.SameSiteLaxMode

	gothic.Store = store

	var providers []goth.Provider
	if cfg.GoogleClientID != "" {
		providers = append(providers, google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.PublicURL+"/api/auth/google/callback", "email", "profile"))
	}
	if cfg.GithubClientID != "" {
		providers = append(providers, github.New(cfg.GithubClientID, cfg.GithubClientSecret, cfg.PublicURL+"/api/auth/github/callback", "read:user", "user:email"))
	}
	goth.UseProviders(providers...)
	log.Info().Int("providers", len(providers)).Msg("Goth providers initialized")
}

func (a *authService) HandleLogin(ctx context.Context, u goth.User) (string, error) {
	log.Info().Str("email", u.Email).Str("provider", u.Provider).Msg("Attempting to handle login for user")
	if u.Email == "" {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		log.Error().Msg("Missing email in Goth user data")
		return "", errors.New("missing Email")
	}

	user, err := a.userRepo.UpsertByEmail(ctx, &models.User{
		Email:       u.Email,
		DisplayName: displayName(u),
		AvatarURL:   u.AvatarURL,
		Provider:    u.Provider,
	})
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("email", u.Email).Msg("Error storing user")
		return "", &models.StorageError{Op: "store user", Err: err}
	}

	token, err := utils.GenerateJWT([]byte(a.cfg.JWTSecret), a.cfg.JWTTTL, user)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("userID", user.ID.Hex()).Msg("Error generating JWT for user")
		return "", errors.New("error generating JWT")
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	log.Info().Str("userID", user.ID.Hex()).Msg("JWT generated successfully")
	return token, nil
}

func displayName(u goth.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.FirstName != "" || u.LastName != "":
		return trimJoin(u.FirstName, u.LastName)
	case u.NickName != "":
		return u.NickName
	case u.Email != "":
		return u.Email
	default:
		return "User"
	}
}

func trimJoin(first, last string) string {
	if first == "" {
		return last
	}
	if last == "" {
		return first
	}
	return first + " " + last
}
