// Package ratelimit paces visits to profile pages.
//
// A run opens one profile page per discovered account. Pacer spreads those
// visits out with a token bucket from golang.org/x/time/rate:
//
//	pacer := ratelimit.NewPacer(30, 1, log) // 30 profiles per minute
//	if err := pacer.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
