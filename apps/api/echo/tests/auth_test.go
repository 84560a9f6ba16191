package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_authApi_login(t *testing.T) {
	ae := setup(t)
	testutil.CreateUser(t, ae.Users, "Hero", "hero", "hero@test.cd", testPwd, []string{user.RoleStudent}, true)
	testutil.CreateUser(t, ae.Users, "N Dog", "ndog", "ndog@test.cd", testPwd, []string{user.RoleStudent}, false)

	login := func(uname, pwd string) []byte {
		return marshalObj(t, echoapi.LoginRequest{Username: uname, Password: pwd})
	}
	invalid := marshalObj(t, httpErr{Error: "invalid credentials"})

	ae.run(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/api/auth/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username":"this field is required","password":"this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/api/auth/login", body: login("nobody", testPwd),
			wantCode: http.StatusUnauthorized, wantData: invalid,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/api/auth/login", body: login("hero", "nope"),
			wantCode: http.StatusUnauthorized, wantData: invalid,
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/api/auth/login", body: login("ndog", testPwd),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	// the failures above count towards the login rate limit
	ae.limiter.Reset()
	for _, uname := range []string{"hero", "HERO@test.cd "} {
		t.Run("success with "+uname, func(t *testing.T) {
			rec := ae.do(newRequest(http.MethodPost, "/api/auth/login", login(uname, testPwd)))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp echoapi.LoginResponse
			decode(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			require.NotNil(t, resp.User)
			assert.Equal(t, "hero", resp.User.Username)
			assert.NotNil(t, resp.User.LastLogin)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, ae.Conf.Server.CookieName, cookies[0].Name)
			assert.Equal(t, resp.Token, cookies[0].Value)
			assert.True(t, cookies[0].HttpOnly)
		})
	}
}

func Test_authApi_loginRateLimit(t *testing.T) {
	ae := setup(t)
	body := marshalObj(t, echoapi.LoginRequest{Username: "nobody", Password: "nope"})

	for i := 0; i < ae.Conf.RateLimit.LoginMax; i++ {
		rec := ae.do(newRequest(http.MethodPost, "/api/auth/login", body))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := ae.do(newRequest(http.MethodPost, "/api/auth/login", body))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	ok, err := jsonBytesEqual(rec.Body.Bytes(), marshalObj(t, httpErr{Error: "too many requests"}))
	require.NoError(t, err)
	assert.True(t, ok)

	// other scopes are not affected
	rec = ae.do(newRequest(http.MethodPost, "/api/auth/password-reset", []byte(`{"email":"nobody@test.cd"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_authApi_me(t *testing.T) {
	ae := setup(t)
	student := ae.Student(t, "hero", "", "")
	naughty := testutil.CreateUser(t, ae.Users, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)

	expired := echoapi.NewClaims(ae.Conf, student.User)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	expiredToken, err := echoapi.GenerateToken(ae.Conf, expired)
	require.NoError(t, err)

	invalidToken := marshalObj(t, httpErr{Error: "invalid or expired jwt"})
	ae.run(t, []httpTest{
		{name: "auth required", path: "/api/auth/me", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "garbage token", path: "/api/auth/me", token: "garbage", wantCode: http.StatusUnauthorized, wantData: invalidToken},
		{name: "expired token", path: "/api/auth/me", token: expiredToken, wantCode: http.StatusUnauthorized, wantData: invalidToken},
		{
			name: "deactivated", path: "/api/auth/me", token: ae.token(t, naughty),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("bearer", func(t *testing.T) {
		rec := ae.do(newAuthRequest(http.MethodGet, "/api/auth/me", ae.token(t, student.User)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var me echoapi.MeResponse
		decode(t, rec, &me)
		assert.Equal(t, student.User.ID, me.User.ID)
		require.NotNil(t, me.Student)
		assert.Equal(t, student.Student.ID, me.Student.ID)
		assert.Nil(t, me.Teacher)
		assert.Nil(t, me.Parent)
	})

	t.Run("cookie", func(t *testing.T) {
		req := newRequest(http.MethodGet, "/api/auth/me")
		req.AddCookie(&http.Cookie{Name: ae.Conf.Server.CookieName, Value: ae.token(t, student.User)})
		rec := ae.do(req)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_authApi_refreshToken(t *testing.T) {
	ae := setup(t)
	student := testutil.CreateUser(t, ae.Users, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	naughty := testutil.CreateUser(t, ae.Users, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)

	// older than the refresh threshold
	unrefreshable := echoapi.NewClaims(ae.Conf, student, time.Now().Add(-2*ae.Conf.Server.JWTRefreshExpirationDelta).Unix())
	unrefreshableToken, err := echoapi.GenerateToken(ae.Conf, unrefreshable)
	require.NoError(t, err)

	ae.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/api/auth/token-refresh", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "inactive user not allowed", method: http.MethodPost, path: "/api/auth/token-refresh", token: ae.token(t, naughty),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh period expired", method: http.MethodPost, path: "/api/auth/token-refresh", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("token refreshed", func(t *testing.T) {
		orig := echoapi.NewClaims(ae.Conf, student, time.Now().Add(-time.Hour).Unix())
		token, err := echoapi.GenerateToken(ae.Conf, orig)
		require.NoError(t, err)

		rec := ae.do(newAuthRequest(http.MethodPost, "/api/auth/token-refresh", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp echoapi.LoginResponse
		decode(t, rec, &resp)

		// the original issue time is carried over
		claims := new(echoapi.Claims)
		_, err = jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(ae.Conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, orig.OrigIssuedAt, claims.OrigIssuedAt)
		assert.Equal(t, student.ID, claims.Subject)
	})
}

func Test_authApi_logout(t *testing.T) {
	ae := setup(t)
	rec := ae.do(newRequest(http.MethodPost, "/api/auth/logout"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ae.Conf.Server.CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func Test_authApi_passwordReset(t *testing.T) {
	ae := setup(t)
	testutil.CreateUser(t, ae.Users, "Hero", "hero", "hero@test.cd", testPwd, []string{user.RoleStudent}, true)

	success := []byte(`{"success":"If the email address supplied is associated with an active account on this system, ` +
		`an email will arrive in your inbox shortly with instructions to reset your password."}`)

	ae.run(t, []httpTest{
		{
			name: "invalid email", method: http.MethodPost, path: "/api/auth/password-reset", body: []byte(`{"email":"lol"}`),
			wantCode: http.StatusBadRequest,
		},
		{name: "unknown email", method: http.MethodPost, path: "/api/auth/password-reset", body: []byte(`{"email":"who@test.cd"}`), wantData: success},
	})
	assert.Empty(t, ae.Mail.SentMessages())

	ae.limiter.Reset()
	rec := ae.do(newRequest(http.MethodPost, "/api/auth/password-reset", []byte(`{"email":" HERO@test.cd"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := ae.Mail.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hero@test.cd", msgs[0].To[0].Address)
	assert.Equal(t, "password_reset", msgs[0].TemplateName)

	t.Run("confirm with an invalid link", func(t *testing.T) {
		body := marshalObj(t, user.ResetUserPassword{Token: "x-y", UID: "bad", Password: testPwd, PasswordConfirm: testPwd})
		rec := ae.do(newRequest(http.MethodPost, "/api/auth/password-reset-confirm", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marshalObj(t, httpErr{Error: user.ErrInvalidReset.Error()}))
		require.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})
}
