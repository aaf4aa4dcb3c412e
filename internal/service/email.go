package service

import (
	"fmt"
	"strings"

	"github.com/Ross11547/Automatizacion/internal/apperror"
	"github.com/Ross11547/Automatizacion/internal/githubapi"
)

// EmailPolicy decides which address of a GitHub account is stored and
// whether the account may fill the INSTITUTIONAL slot.
type EmailPolicy struct {
	Domain          string // e.g. "unifranz.edu.bo"
	RequireVerified bool
}

func (p EmailPolicy) inDomain(addr string) bool {
	d := strings.ToLower(strings.TrimSpace(p.Domain))
	return d != "" && strings.HasSuffix(strings.ToLower(addr), "@"+d)
}

// cleanEmails trims addresses and drops empty ones.
func cleanEmails(in []githubapi.Email) []githubapi.Email {
	out := make([]githubapi.Email, 0, len(in))
	for _, e := range in {
		e.Address = strings.TrimSpace(e.Address)
		if e.Address != "" {
			out = append(out, e)
		}
	}
	return out
}

// Resolve picks the address to store, by priority: verified in domain, any in
// domain, primary, first. Returns "" for an empty list.
func (p EmailPolicy) Resolve(emails []githubapi.Email) string {
	emails = cleanEmails(emails)

	var anyDomain, primary string
	for _, e := range emails {
		if p.inDomain(e.Address) {
			if e.Verified {
				return e.Address
			}
			if anyDomain == "" {
				anyDomain = e.Address
			}
		}
		if e.Primary && primary == "" {
			primary = e.Address
		}
	}

	switch {
	case anyDomain != "":
		return anyDomain
	case primary != "":
		return primary
	case len(emails) > 0:
		return emails[0].Address
	}
	return ""
}

// CheckInstitutional fails with apperror.ErrDomainNotAllowed unless emails
// contains an address in the domain, verified when RequireVerified is set.
func (p EmailPolicy) CheckInstitutional(emails []githubapi.Email) error {
	for _, e := range cleanEmails(emails) {
		if p.inDomain(e.Address) && (e.Verified || !p.RequireVerified) {
			return nil
		}
	}
	if p.RequireVerified {
		return apperror.DomainNotAllowed(fmt.Sprintf(
			"your GitHub account needs a VERIFIED @%s email. Add and verify it in Settings > Emails", p.Domain))
	}
	return apperror.DomainNotAllowed(fmt.Sprintf(
		"your GitHub account needs an @%s email. Add it in Settings > Emails", p.Domain))
}
