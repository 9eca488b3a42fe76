// Package textutil provides text helpers shared by case-type detection, prompt
// construction and the analyze endpoint.
//
// The primary use cases are:
//   - Normalizing Arabic input (NFC, diacritics and tatweel removed) before
//     keyword matching
//   - Sanitizing free text the way the analyze endpoint accepts it
//   - Rune-safe truncation for summaries
//   - Sanitizing case names for export filenames
package textutil
