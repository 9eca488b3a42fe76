// Package prompt renders the Gemini prompts for analysis stages and the final
// petition, and bounds the amount of earlier-stage output carried into them.
//
// Prompts are text/template files embedded in the binary. Summaries of earlier
// stages are clipped per entry (200 runes for stages, 300 for the petition)
// and TrimSummaries drops the oldest entries once the total grows past the
// model's practical input budget.
package prompt
