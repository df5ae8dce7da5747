package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"koboland/internal/model"
	"koboland/internal/service"
	"koboland/internal/util"

	"github.com/gin-gonic/gin"
)

const testJWTSecret = "test-secret"

type fakeAuthService struct {
	user *model.User
	err  error
}

func (f *fakeAuthService) Register(req service.RegisterRequest) (*service.AuthResponse, error) {
	return nil, f.err
}

func (f *fakeAuthService) Login(req service.LoginRequest) (*service.AuthResponse, error) {
	return nil, f.err
}

func (f *fakeAuthService) GetMe(userID string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func newAuthTestRouter(authService service.AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(authService, testJWTSecret)

	r := gin.New()
	r.GET("/protected", h.AuthMiddleware(), func(c *gin.Context) {
		userID, _ := c.Get("userID")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	r.GET("/open", h.OptionalAuthMiddleware(), func(c *gin.Context) {
		_, authenticated := c.Get("userID")
		c.JSON(http.StatusOK, gin.H{"authenticated": authenticated})
	})
	return r
}

func authedRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	token, err := util.GenerateToken("u1", "alice", testJWTSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAuthMiddlewareAllowsActiveUser(t *testing.T) {
	r := newAuthTestRouter(&fakeAuthService{user: &model.User{ID: "u1", Username: "alice"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, "/protected"))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestAuthMiddlewareRejectsBannedUser(t *testing.T) {
	// A valid token must not outlive a ban.
	r := newAuthTestRouter(&fakeAuthService{user: &model.User{ID: "u1", Username: "alice", IsBanned: true}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, "/protected"))

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := newAuthTestRouter(&fakeAuthService{user: &model.User{ID: "u1"}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestOptionalAuthTreatsBannedAsAnonymous(t *testing.T) {
	r := newAuthTestRouter(&fakeAuthService{user: &model.User{ID: "u1", IsBanned: true}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(t, "/open"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != `{"authenticated":false}` {
		t.Errorf("body = %s, want authenticated false", got)
	}
}
