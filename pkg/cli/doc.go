// Package cli implements glossa-admin, the operator tool for the RBAC
// database. Every command takes -db (default $GLOSSA_DATABASE_URL) and
// -driver (postgres or sqlite3).
//
// # Commands
//
// migrate: apply pending schema migrations
//
//	glossa-admin migrate -db postgres://localhost/glossa
//
// seed: install the permission catalog and system roles, optionally from a
// custom YAML file
//
//	glossa-admin seed -file ./seed.yaml
//
// roles: list roles with their grants
//
//	glossa-admin roles -json
//
// grant: replace a user's roles (an empty list removes every role)
//
//	glossa-admin grant -user 42 -roles admin,moderator
//
// check: evaluate permissions for a user; exits 2 when denied
//
//	glossa-admin check -user 42 -perm admin.terms.approve,admin.terms.reject -mode any
package cli
