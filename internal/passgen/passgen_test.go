package passgen

import (
	"regexp"
	"strings"
	"testing"
)

var passwordFormat = regexp.MustCompile(`^[A-Z]{4}-[0-9]{4}$`)

func TestPasswordFormat(t *testing.T) {
	for i := 0; i < 500; i++ {
		p, err := Password()
		if err != nil {
			t.Fatalf("Password: %v", err)
		}
		if !passwordFormat.MatchString(p) {
			t.Fatalf("password %q does not match LLLL-DDDD", p)
		}
		if strings.ContainsAny(p, "IO") {
			t.Fatalf("password %q contains an ambiguous letter", p)
		}
	}
}

func TestPasswordsVary(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		p, err := Password()
		if err != nil {
			t.Fatalf("Password: %v", err)
		}
		seen[p] = true
	}
	// 200 draws from a ~3.3M space colliding down to a handful would mean
	// the generator is broken, not unlucky.
	if len(seen) < 190 {
		t.Fatalf("expected near-unique passwords, got %d distinct of 200", len(seen))
	}
}

func TestTokenLengthAndVariety(t *testing.T) {
	a, err := Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	b, err := Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if a == b {
		t.Fatal("two tokens came out identical")
	}
	// 32 bytes base64url without padding.
	if len(a) != 43 {
		t.Fatalf("expected 43-char token, got %d (%q)", len(a), a)
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token %q is not URL-safe", a)
	}
}
