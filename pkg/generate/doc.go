// Package generate produces text through the OpenAI chat completions API.
//
// Each call picks a credential for the caller: their most recent active
// "openai" API key, or the configured system key when they have none. A
// successful call with a user key refreshes that key's last-used time in
// the background. Provider failures are mapped onto apperr kinds so
// handlers can return them unchanged.
package generate
