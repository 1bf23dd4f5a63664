// Package redis connects to Redis with go-redis/v9.
//
// Connect retries the initial ping so the service can start before Redis is
// ready, and Healthcheck adapts a client to the httpserver health endpoint.
// The client is shared by the distributed rate limiter, the emergency event
// bus and the pending-registration store.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
package redis
