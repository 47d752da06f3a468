// Package changelog builds the markdown body of a draft release.
//
// This package implements:
//   - merge-time ordering and first-seen deduplication of pull requests
//   - grouping into configured categories by label, with an implicit trailing
//     bucket for pull requests that match no category
//   - markdown rendering with the branch marker as the first line
//   - a colored terminal preview of the same sections
//
// The marker line is always emitted verbatim; the next run uses it to find
// the release again.
package changelog
