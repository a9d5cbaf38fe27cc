package api

import "regexp"

// emailPattern is deliberately loose: one "@", no whitespace, and a dot
// in the domain. Real validation happens when the verification mail
// arrives.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}
