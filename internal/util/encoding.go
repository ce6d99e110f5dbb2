package util

import "golang.org/x/text/unicode/norm"

// Normalize applies NFKD so visually identical secrets entered through
// different input methods derive the same key.
func Normalize(s string) string {
	return norm.NFKD.String(s)
}
