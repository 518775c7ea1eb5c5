package services

import (
	"testing"

	"github.com/selveresta/projectQuestBot/models"
)

func TestNormalizeProfileURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://x.com/user", "https://x.com/user"},
		{"http://x.com/user", "https://x.com/user"},
		{"https://www.x.com/user", "https://x.com/user"},
		{"https://x.com/user/", "https://x.com/user"},
		{"https://x.com/user?ref=promo#top", "https://x.com/user"},
		{"  https://x.com/user  ", "https://x.com/user"},
		{"x.com/user", "https://x.com/user"},
		{"www.instagram.com/user/", "https://instagram.com/user"},
		{"not a url at all", "not a url at all"},
	}
	for _, tc := range cases {
		if got := NormalizeProfileURL(tc.in); got != tc.want {
			t.Fatalf("NormalizeProfileURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalContactFolding(t *testing.T) {
	if canonicalContact(models.ContactEmail, " User@Example.COM ") != canonicalContact(models.ContactEmail, "user@example.com") {
		t.Fatalf("email folding not canonical")
	}
	if canonicalContact(models.ContactXProfile, "HTTPS://X.com/SomeUser/") != canonicalContact(models.ContactXProfile, "x.com/someuser") {
		t.Fatalf("profile URL canonicalization not applied")
	}
	if canonicalContact(models.ContactWallet, "0xAbC") != canonicalContact(models.ContactWallet, "0xabc") {
		t.Fatalf("wallet folding not canonical")
	}
}
