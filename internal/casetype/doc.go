// Package casetype classifies case facts into legal categories.
//
// Two classifiers live here. Detect scores weighted keywords across ten
// categories and reports a confidence with alternatives; it backs the CLI
// detect command and custom stage suggestions. Determine is the first-match
// categorisation the analyze endpoint puts into prompt context, paired with
// Complexity. Matching runs on textutil.Normalize output, so diacritics and
// hamza spelling variants do not affect results.
package casetype
