package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"matching password", "correct horse", hash, true},
		{"wrong password", "battery staple", hash, false},
		{"oauth-only account", "correct horse", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("CheckPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := TokenService{Secret: []byte("test-secret"), Issuer: "atamind", TTL: time.Hour}

	token, exp, err := svc.CreateToken("guardian-1", "veli@example.com")
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry should be in the future, got %v", exp)
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.GuardianID != "guardian-1" || claims.Email != "veli@example.com" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejects(t *testing.T) {
	svc := TokenService{Secret: []byte("test-secret"), Issuer: "atamind", TTL: time.Hour}
	other := TokenService{Secret: []byte("other-secret"), Issuer: "atamind", TTL: time.Hour}
	wrongIssuer := TokenService{Secret: []byte("test-secret"), Issuer: "someone-else", TTL: time.Hour}
	expired := TokenService{Secret: []byte("test-secret"), Issuer: "atamind", TTL: -time.Minute}

	sign := func(s TokenService) string {
		tok, _, err := s.CreateToken("guardian-1", "veli@example.com")
		if err != nil {
			t.Fatalf("CreateToken failed: %v", err)
		}
		return tok
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(other)},
		{"wrong issuer", sign(wrongIssuer)},
		{"expired", sign(expired)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ParseToken(tt.token); err != ErrInvalidToken {
				t.Errorf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	current := time.Now()
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     2,
		window:   time.Minute,
		now:      func() time.Time { return current },
	}

	if !rl.Allow("1.2.3.4") || !rl.Allow("1.2.3.4") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("third request in the window should be rejected")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other clients have their own bucket")
	}

	current = current.Add(time.Minute)
	if !rl.Allow("1.2.3.4") {
		t.Error("bucket should refill after the window")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "127.0.0.1:1234", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.3"}, "127.0.0.1:1234", "10.0.0.3"},
		{"remote addr", nil, "192.168.1.5:5555", "192.168.1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := GetClientIP(r); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreateCookieSecureFlag(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if CreateCookie(r, TokenCookieName, "v", time.Now()).Secure {
		t.Error("plain http request should not set Secure")
	}
	r.Header.Set("X-Forwarded-Proto", "https")
	if !CreateCookie(r, TokenCookieName, "v", time.Now()).Secure {
		t.Error("proxied https request should set Secure")
	}
}

func TestStateSigner(t *testing.T) {
	signer := NewStateSigner("secret")
	nonce := GenerateState()

	state, err := signer.Sign(nonce)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	tests := []struct {
		name  string
		nonce string
		state string
		want  bool
	}{
		{"valid", nonce, state, true},
		{"different nonce", GenerateState(), state, false},
		{"tampered signature", nonce, nonce + ".deadbeef", false},
		{"missing separator", nonce, nonce, false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signer.Verify(tt.nonce, tt.state); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := NewStateSigner("other").Sign(""); err == nil {
		t.Error("expected error for empty nonce")
	}
}
