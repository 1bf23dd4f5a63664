// Package flagsource implements feature.Source backends.
//
// Postgres is the production source: flags live in feature_flags (targeting
// rules kept as raw text so malformed rules survive a round trip and degrade
// at evaluation time), per-user overrides in feature_flag_user_overrides.
// Its schema ships as goose migrations, see Migrations.
//
// YAML reads a seed file on every LoadAll, which makes it usable with
// feature.Store.RunReloader for file-based deployments. It is read-only.
//
// Memory is a writable in-process source for tests and local runs.
package flagsource
