// Package retry retries transient browser failures with exponential backoff.
//
// Only typed navigation and timeout errors are retried by default; an
// expired session or a broken selector will not fix itself, so those fail
// on the first attempt.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return b.Navigate(ctx, instagram.RootURL())
//	}, retry.FromConfig(cfg.Retry, log))
package retry
