package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/labctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
			testlog.Logf("auth/static-token: stored=%q input=%q err=%v", tc.stored, tc.input, err)
		})
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"abc":          "",
		"":             "",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Fatalf("BearerToken(%q) = %q want %q", in, got, want)
		}
	}
}

func TestRequireMiddleware(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})
	r := gin.New()
	r.POST("/x", Require(validator), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for header, want := range map[string]int{
		"":          http.StatusUnauthorized,
		"Bearer no": http.StatusUnauthorized,
		"Bearer ok": http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("header %q: expected %d, got %d", header, want, rr.Code)
		}
	}
}
