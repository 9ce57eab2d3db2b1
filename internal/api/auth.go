package api

import (
	"context"
	"net/http"
	"regexp"

	"github.com/voxclone/voxclone-go/internal/core"
)

// Auth endpoints. Code-send and login are the only endpoints reachable
// without a bearer token.
const (
	endpointSendCode    = "/auth/send-code"
	endpointLogin       = "/auth/login"
	endpointCurrentUser = "/auth/me"
)

const verificationCodeLength = 6

// phonePattern matches Chinese mobile numbers: 11 digits, leading 1, second
// digit 3-9.
var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// Validation errors raised before any network call.
var (
	ErrInvalidPhone = &Error{Kind: KindValidation, Message: "手机号格式不正确"}
	ErrInvalidCode  = &Error{Kind: KindValidation, Message: "验证码必须是6位数字"}
)

// ValidatePhone reports whether phone is a well-formed mobile number.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// LoginResponse is the payload returned on successful login.
type LoginResponse struct {
	Token string     `json:"token"`
	User  *core.User `json:"user"`
}

// SendVerificationCode requests an SMS verification code for phone. The
// phone format is validated locally first.
func (c *Client) SendVerificationCode(ctx context.Context, phone string) error {
	if !ValidatePhone(phone) {
		return ErrInvalidPhone
	}

	body := map[string]string{"phone": phone}

	var resp struct {
		Message string `json:"message"`
	}

	return c.Request(ctx, http.MethodPost, endpointSendCode, body, &resp)
}

// Login exchanges a phone number and verification code for a session. On
// success the token and user profile are persisted in the session store; on
// failure nothing is persisted and the session stays unauthenticated.
func (c *Client) Login(ctx context.Context, phone, code string) (*LoginResponse, error) {
	if !ValidatePhone(phone) {
		return nil, ErrInvalidPhone
	}

	if !validCode(code) {
		return nil, ErrInvalidCode
	}

	body := map[string]string{"phone": phone, "code": code}

	var resp LoginResponse

	err := c.Request(ctx, http.MethodPost, endpointLogin, body, &resp)
	if err != nil {
		return nil, err
	}

	err = c.session.SetToken(resp.Token)
	if err != nil {
		return nil, err
	}

	if resp.User != nil {
		err = c.session.SetCachedUser(resp.User)
		if err != nil {
			return nil, err
		}
	}

	return &resp, nil
}

// CurrentUser fetches the authenticated user from the backend and refreshes
// the cached profile. Callers use it to validate a persisted session.
func (c *Client) CurrentUser(ctx context.Context) (*core.User, error) {
	_, err := c.RequireToken()
	if err != nil {
		return nil, err
	}

	var user core.User

	err = c.Request(ctx, http.MethodGet, endpointCurrentUser, nil, &user)
	if err != nil {
		return nil, err
	}

	err = c.session.SetCachedUser(&user)
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// IsAuthenticated reports whether a bearer token is stored. It does not
// verify the token against the backend.
func (c *Client) IsAuthenticated() bool {
	_, ok := c.session.Token()

	return ok
}

// Logout clears the persisted token and cached user.
func (c *Client) Logout() error {
	tokenErr := c.session.ClearToken()
	userErr := c.session.ClearCachedUser()

	if tokenErr != nil {
		return tokenErr
	}

	return userErr
}

func validCode(code string) bool {
	if len(code) != verificationCodeLength {
		return false
	}

	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return false
		}
	}

	return true
}
