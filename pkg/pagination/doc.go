// Package pagination walks a cursor-paginated listing endpoint to the end.
//
// Every page is requested with a root ID, a page size and the continuation
// token returned by the previous page; the walk ends at the first page that
// carries no token. The declared total is taken from the first page only and
// is the authority the caller checks the unique ID count against.
//
// Example usage:
//
//	lister, err := pagination.NewLister(listClient, pagination.DefaultConfig("/api/list"))
//	listing, err := lister.ListAll(ctx, "12345")
//	ids, skipped := pagination.UniqueIDs(listing.Items, "writeUp.id")
//	if err := pagination.CheckCompleteness(listing.DeclaredTotal, len(ids)); err != nil {
//		// abort before fetching anything
//	}
//
// With a PageCache set, pages are replayed from Redis so a restarted run does
// not walk the listing again.
package pagination
