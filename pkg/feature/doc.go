// Package feature evaluates feature flags.
//
// The package is organised around four pieces:
//
//  1. Flag - a definition with an enable switch, time window, allow-lists,
//     prerequisites, targeting rules, rollout percentage and variants
//  2. Store - the in-memory flag set, kept warm from a Source by full reloads
//     and incremental StoreEvents
//  3. Engine - turns (key, EvalContext) into a Decision
//  4. Emergency and Manager - the kill switch and the management plane
//
// # Decision order
//
// Engine.Evaluate checks, in order: empty key, result cache, circuit breaker,
// lookup, enabled, environment allow-list, start and end dates, user
// allow-list or store override, role allow-list, prerequisites, targeting
// rules, rollout percentage and finally the default value. Every Decision
// carries the Reason for its outcome.
//
// Evaluate never returns an error. Store failures trip a per-key breaker in
// package circuitbreaker and the flag reads as off; malformed rules are
// ignored and the flag falls back to its default value.
//
// # Usage
//
//	store := feature.NewStore(source, feature.WithOrigin(instanceID))
//	if err := store.Load(ctx); err != nil {
//		return err
//	}
//	go store.RunReloader(ctx, time.Minute)
//
//	engine := feature.NewEngine(store,
//		feature.WithEnvironment("production"),
//		feature.WithRecorder(recorder),
//	)
//
//	d := engine.Evaluate(ctx, "new-checkout", feature.EvalContext{
//		"userId":  user.ID,
//		"country": "US",
//	})
//	if d.Enabled {
//		// ...
//	}
//
// # Rules
//
// Rules are a closed set of types, each with its own operators:
//
//	user_attribute  equals not_equals contains in not_in regex greater_than ...
//	datetime        before after between day_of_week
//	geography       country_equals country_in
//	device          platform_equals mobile desktop user_agent_contains
//	version         version_greater version_greater_equal version_less ...
//	percentage      percentage_in
//
// Rules are decoded and validated together, so an operator from another type
// is rejected instead of silently evaluating to false.
//
// # Rollout
//
// Bucket hashes "featureKey:subjectID" with SHA-256 and reduces it modulo 100.
// The subject is the userId context value, else anonymousId.
package feature
