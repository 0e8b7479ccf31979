package account

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-budget-go/internal/auth"
	sessionentity "github.com/ovaphlow/pitchfork/service-budget-go/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-budget-go/internal/user/entity"
)

type fakeUsers struct {
	registerErr error
	authErr     error
	gotUser     string
}

func (f *fakeUsers) Register(_ context.Context, username, _ string) (*entity.User, error) {
	f.gotUser = username
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &entity.User{ID: 42, Username: username}, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, username, _ string) (*entity.User, error) {
	f.gotUser = username
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &entity.User{ID: 42, Username: username}, nil
}

type fakeSessions struct {
	issued    []int64
	revoked   []string
	createErr error
	revokeErr error
	expires   time.Time
}

func (f *fakeSessions) CreateToken(_ context.Context, userID int64) (*sessionentity.AccessToken, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.issued = append(f.issued, userID)
	return &sessionentity.AccessToken{Token: "tok-new", UserID: userID, Expires: f.expires}, nil
}

func (f *fakeSessions) RevokeToken(_ context.Context, token string) (bool, error) {
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	f.revoked = append(f.revoked, token)
	return true, nil
}

func newHandler() (*Handler, *fakeUsers, *fakeSessions) {
	u := &fakeUsers{}
	s := &fakeSessions{expires: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewHandler(u, s, auth.Cookies{Domain: "127.0.0.1"}, zap.NewNop().Sugar()), u, s
}

func post(fn http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/account", strings.NewReader(body))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	return nil
}

func TestRegister_Success(t *testing.T) {
	h, u, s := newHandler()
	rec := post(h.Register, `{"username":"alice","password":"hunter22"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Your account has been created"}`, rec.Body.String())
	assert.Equal(t, "alice", u.gotUser)
	assert.Equal(t, []int64{42}, s.issued)

	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	assert.Equal(t, "tok-new", ck.Value)
	assert.True(t, ck.HttpOnly)
	assert.True(t, ck.Expires.Equal(s.expires))
}

func TestRegister_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"missing", `{"username":"alice"}`, nil, http.StatusBadRequest, "Missing parameters"},
		{"wrong type", `{"username":"alice","password":12345678}`, nil, http.StatusBadRequest, "Missing parameters"},
		{"not json", `username=alice`, nil, http.StatusBadRequest, "Missing parameters"},
		{"taken", `{"username":"alice","password":"hunter22"}`, user.ErrUsernameTaken, http.StatusConflict, "The username is already in use"},
		{"bad name", `{"username":"a!","password":"hunter22"}`, user.ErrInvalidUsername, http.StatusBadRequest, "Username must be alphanumeric and between 3-20 chars"},
		{"short", `{"username":"alice","password":"x"}`, user.ErrPasswordTooShort, http.StatusBadRequest, "Password must be at least 8 chars"},
		{"long", `{"username":"alice","password":"x"}`, user.ErrPasswordTooLong, http.StatusBadRequest, "Your password is too long!"},
		{"store", `{"username":"alice","password":"hunter22"}`, errors.New("db down"), http.StatusInternalServerError, "Unknown error while creating user"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, u, s := newHandler()
			u.registerErr = tc.err
			rec := post(h.Register, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"error":"`+tc.msg+`"}`, rec.Body.String())
			assert.Empty(t, s.issued)
			assert.Nil(t, sessionCookie(rec))
		})
	}
}

func TestLogin(t *testing.T) {
	h, _, s := newHandler()
	rec := post(h.Login, `{"username":"alice","password":"hunter22"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"You are now logged in as alice"}`, rec.Body.String())
	assert.NotNil(t, sessionCookie(rec))
	assert.Len(t, s.issued, 1)
}

func TestLogin_Errors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{user.ErrUserNotFound, http.StatusNotFound, "The user does not exist"},
		{user.ErrBadCredentials, http.StatusUnauthorized, "Incorrect username or password"},
		{errors.New("db down"), http.StatusInternalServerError, "Sorry, something went wrong."},
	}
	for _, tc := range cases {
		h, u, _ := newHandler()
		u.authErr = tc.err
		rec := post(h.Login, `{"username":"alice","password":"hunter22"}`)
		assert.Equal(t, tc.status, rec.Code)
		assert.JSONEq(t, `{"error":"`+tc.msg+`"}`, rec.Body.String())
		assert.Nil(t, sessionCookie(rec))
	}

	h, _, _ := newHandler()
	rec := post(h.Login, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_TokenFailure(t *testing.T) {
	h, _, s := newHandler()
	s.createErr = errors.New("redis down")
	rec := post(h.Login, `{"username":"alice","password":"hunter22"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, sessionCookie(rec))
}

func withSession(fn http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
	req = req.WithContext(auth.WithSession(req.Context(), &entity.User{ID: 42, Username: "alice"}, "tok-old"))
	rec := httptest.NewRecorder()
	fn(rec, req)
	return rec
}

func TestMe(t *testing.T) {
	h, _, _ := newHandler()
	rec := withSession(h.Me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"alice"}`, rec.Body.String())

	rec = post(h.Me, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	h, _, s := newHandler()
	rec := withSession(h.Logout)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Succesfully logged out"}`, rec.Body.String())
	assert.Equal(t, []string{"tok-old"}, s.revoked)
	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	assert.Negative(t, ck.MaxAge)
}

func TestLogout_RevokeFailure(t *testing.T) {
	h, _, s := newHandler()
	s.revokeErr = errors.New("db down")
	rec := withSession(h.Logout)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, sessionCookie(rec))
}
