// Package ratelimit paces attachment downloads.
//
// The Kobo media host is asked for one file at a time; Throttle inserts a
// fixed pause after every successful download so a long run does not
// hammer the server.
//
//	throttle := ratelimit.NewThrottle(cfg.Download.ThrottleDuration())
//	if err := throttle.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
