// Package remedy provides the high-level library API for the remedy
// self-healing engine.
//
// This package is the primary integration point for tools that embed the
// engine: CI remediation jobs, editor integrations, fleet-wide fixers. It
// wraps the internal packages into a clean, stable public API.
//
// # Concurrency safety
//
// One session holds the repository's mutation lock for its whole lifetime,
// so concurrent sessions against the same repository serialize: the second
// caller gets a lock-conflict error rather than interleaved mutations.
// Clients for different repositories are fully independent.
//
// # Typical usage
//
//	client, err := remedy.OpenOrInit(".", remedy.InitOptions{})
//	if err != nil { ... }
//	client.RegisterDetector(myLinter)
//	result, err := client.RunSession(ctx, remedy.SessionOptions{
//	    Items: []session.Item{{Recipe: fixer, Candidate: candidate}},
//	})
package remedy
