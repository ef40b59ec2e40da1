package service

import (
	"errors"
	"strings"
	"time"

	"crescoflow/internal/auth/password"
	"crescoflow/platform/config"
	"crescoflow/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrLoginDisabled = errors.New("operator login is not configured")

const accessTokenType = "access"

// operatorNamespace seeds the stable operator id derived from the email.
var operatorNamespace = uuid.MustParse("6f1c0c8e-4f7a-4b7e-9a53-2b1f5d0e8c41")

// Token is a signed access token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Service struct {
	cfg config.AuthConfig
	log *logger.Logger
	now func() time.Time
}

func New(cfg config.AuthConfig, log *logger.Logger) *Service {
	return &Service{cfg: cfg, log: log, now: time.Now}
}

// OperatorID is the subject put in every token of the operator account.
func OperatorID(email string) uuid.UUID {
	return uuid.NewSHA1(operatorNamespace, []byte(normalizeEmail(email)))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login checks the operator credentials and issues an access token.
func (s *Service) Login(email, plainPassword string) (Token, error) {
	operator := normalizeEmail(s.cfg.GetOperatorEmail())
	if operator == "" || s.cfg.GetOperatorPasswordHash() == "" {
		s.log.AuthEvent("login", email, false, "login disabled")
		return Token{}, ErrLoginDisabled
	}

	if normalizeEmail(email) != operator {
		s.log.AuthEvent("login", email, false, "unknown email")
		return Token{}, ErrInvalidCredentials
	}
	if err := password.Compare(s.cfg.GetOperatorPasswordHash(), plainPassword); err != nil {
		s.log.AuthEvent("login", email, false, "wrong password")
		return Token{}, ErrInvalidCredentials
	}

	tok, err := s.signJWT(operator)
	if err != nil {
		return Token{}, err
	}
	s.log.AuthEvent("login", email, true, "")
	return tok, nil
}

func (s *Service) signJWT(email string) (Token, error) {
	now := s.now()
	expires := now.Add(s.cfg.GetAccessTokenTTL())
	claims := jwt.MapClaims{
		"sub":   OperatorID(email).String(),
		"email": email,
		"type":  accessTokenType,
		"exp":   expires.Unix(),
		"iat":   now.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tokenObj.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}
