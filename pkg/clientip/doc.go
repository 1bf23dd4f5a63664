// Package clientip resolves the originating client address of a request
// served behind reverse proxies.
//
// Forwarding headers (CF-Connecting-IP, X-Real-IP, X-Forwarded-For by
// default) are honoured only when the TCP peer is a trusted proxy. The
// X-Forwarded-For chain is read right to left, skipping trusted hops, so a
// client that prepends fake entries still gets its real address.
//
//	resolver, err := clientip.NewResolver(clientip.WithTrustedProxies("10.0.0.0/8"))
//	if err != nil {
//		return err
//	}
//	r.Use(resolver.Middleware)
//
//	// in a handler
//	ip := clientip.FromContext(r.Context())
package clientip
