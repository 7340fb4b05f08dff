// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing core model objects (messages,
// behavior profiles, registered agents, governance identities, rationale
// records). These helpers are intentionally minimal. They are not intended
// for production usage.
package testutil
