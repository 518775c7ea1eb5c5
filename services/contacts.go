package services

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"

	"github.com/selveresta/projectQuestBot/models"
)

var fold = cases.Fold()

// foldValue produces the canonical form used for uniqueness comparison:
// Unicode case folding plus whitespace trimming.
func foldValue(value string) string {
	return fold.String(strings.TrimSpace(value))
}

// NormalizeProfileURL canonicalizes a submitted social profile link: https
// scheme, no www prefix, no query/fragment, no trailing slashes. Returns
// the input trimmed when it does not parse as a URL.
func NormalizeProfileURL(input string) string {
	trimmed := strings.TrimSpace(input)
	raw := trimmed
	if raw != "" && !strings.Contains(raw, "://") {
		// Users paste links without a scheme.
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return trimmed
	}
	parsed.Scheme = "https"
	parsed.Fragment = ""
	parsed.RawQuery = ""
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	parsed.Host = host
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}

// canonicalContact maps each unique field to the comparison form persisted
// values are checked against. Profile URLs additionally go through URL
// canonicalization so "https://X.com/a/" collides with "https://x.com/a".
func canonicalContact(field models.ContactField, value string) string {
	switch field {
	case models.ContactXProfile, models.ContactInstagram:
		return foldValue(NormalizeProfileURL(value))
	default:
		return foldValue(value)
	}
}

// uniqueContactFields lists the slots enforced to be globally unique.
var uniqueContactFields = []models.ContactField{
	models.ContactEmail,
	models.ContactWallet,
	models.ContactSolanaWallet,
	models.ContactXProfile,
	models.ContactInstagram,
	models.ContactDiscordID,
}

// contactFieldValue reads the named contact slot off a participant.
func contactFieldValue(p *models.Participant, field models.ContactField) string {
	switch field {
	case models.ContactEmail:
		return p.Email
	case models.ContactWallet:
		return p.Wallet
	case models.ContactSolanaWallet:
		return p.SolanaWallet
	case models.ContactXProfile:
		return p.XProfileURL
	case models.ContactInstagram:
		return p.InstagramProfileURL
	case models.ContactDiscordID:
		return p.DiscordUserID
	}
	return ""
}

// patchFieldValue reads the named contact slot off a patch, reporting
// whether the patch carries it.
func patchFieldValue(patch models.ContactPatch, field models.ContactField) (string, bool) {
	switch field {
	case models.ContactEmail:
		if patch.Email != nil {
			return *patch.Email, true
		}
	case models.ContactWallet:
		if patch.Wallet != nil {
			return *patch.Wallet, true
		}
	case models.ContactSolanaWallet:
		if patch.SolanaWallet != nil {
			return *patch.SolanaWallet, true
		}
	case models.ContactXProfile:
		if patch.XProfileURL != nil {
			return *patch.XProfileURL, true
		}
	case models.ContactInstagram:
		if patch.InstagramProfileURL != nil {
			return *patch.InstagramProfileURL, true
		}
	case models.ContactDiscordID:
		if patch.DiscordUserID != nil {
			return *patch.DiscordUserID, true
		}
	}
	return "", false
}
