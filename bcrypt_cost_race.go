//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// race builds hash at the library minimum plus two so the credential and flow
// suites stay inside their timeouts
func passwordHashCost() int {
	return bcrypt.MinCost + 2
}
