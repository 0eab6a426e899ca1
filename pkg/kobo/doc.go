// Package kobo is a small client for the KoboToolbox v2 data API.
//
// It fetches pages of submissions for an asset and streams attachment
// downloads. Non-200 responses become typed errors from pkg/errors; 401
// and 403 both surface as ErrorTypeAuth.
//
//	client := kobo.NewClient(cfg.Kobo.Token, cfg.Download.Timeout(), log)
//	page, err := client.FetchPage(ctx, kobo.FirstPageURL(cfg.Kobo.KFURL, uid, 100, ""))
package kobo
