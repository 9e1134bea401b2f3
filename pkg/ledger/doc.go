// Package ledger remembers which saved posts and accounts were already
// processed, so each run only surfaces accounts no earlier run returned.
//
// A Ledger is a plain in-memory set loaded once per run and passed to
// discovery explicitly. Uniqueness follows its DedupKey: with DedupUsername an
// account is recorded once; with DedupPost every post is its own record and
// already-recorded posts are not opened again. Post records are keyed by the
// post's permanent URL (https://www.instagram.com/p/<shortcode>/), never by
// the link as rendered, which can carry query strings.
//
// Entries never expire. Stores only ever add to what is persisted.
package ledger
