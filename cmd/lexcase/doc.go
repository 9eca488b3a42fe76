// Command lexcase is the command-line front end for the legal case analysis
// pipeline.
//
// It manages cases, stage results and templates in the local SQLite store,
// runs the multi-stage Gemini analysis either in-process or against a running
// lexcased daemon, and controls that daemon (serve, start, stop, status).
// Configuration is read lazily from the TOML file named by --config or the
// default search path; commands annotated with skipConfigLoad run without it.
package main
