// Package config stores apanic-cli connection profiles.
//
// Profiles live in a YAML file, ~/.apanic/cli.yaml by default, written with
// owner-only permissions since it may hold bearer tokens. Global flags and
// APANIC_* environment variables override the selected profile.
package config
