// Package retry retries transient failures with exponential backoff.
//
// Retries are off by default for downloads (one attempt), matching the
// behaviour of a plain run; raising retry.max_attempts in the config makes
// page fetches retry network and server errors.
//
//	cfg := retry.NewConfig(3, time.Second, 30*time.Second, log)
//	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
//		_, err := client.FetchPage(ctx, url)
//		return err
//	})
package retry
