// Package abuse protects the self-registration flow.
//
// Protection.Check gates each attempt: the self-registration flag must be
// on, per-IP attempt counters in the shared ratelimit.Store decide between
// allow, CAPTCHA and block, and a suspicion score built from request
// signals (disposable email domains, automation user agents, IP reputation,
// VPN and proxy use, failed attempts, fingerprint reuse, machine-regular
// timing) can reject an attempt outright. Rejections are reported with
// sentinel errors whose messages reveal nothing useful to an attacker.
//
// Escalation watches unique IPs per minute. Past EscalateAt the per-IP
// limits are halved and CAPTCHA becomes mandatory; past EmergencyAt the
// self-registration flag is disabled through feature.Emergency, pending
// registrations are cleared and a critical audit record is written.
//
//	p := abuse.NewProtection(store, engine,
//		abuse.WithDisabler(emergency),
//		abuse.WithPendingStore(abuse.NewRedisPendingStore(client, "flaggate:", 0)),
//		abuse.WithAudit(auditLog),
//	)
//	res, err := p.Check(ctx, abuse.Attempt{IP: ip, Fingerprint: fp, Email: email, UserAgent: ua})
//	switch {
//	case errors.Is(err, abuse.ErrRegistrationDisabled):
//		// registration is off
//	case err != nil:
//		// rejected
//	case res.RequireCaptcha:
//		// ask for a CAPTCHA
//	}
package abuse
