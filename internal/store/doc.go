// Package store persists cases, stage results, settings, and templates in
// SQLite.
//
// A case owns an ordered list of stage results keyed by stage index; writing a
// result for an index that already exists replaces it, so a case never holds
// two results for the same stage and reads always return them in index order.
// Case names are unique. Settings are free-form key/value pairs (API key,
// preferred model, rate limit, theme) and templates carry {{caseName}} and
// {{stageSummaries}} placeholders.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package store
