// Package channel builds the relational read views: the channel profile with
// its subscription aggregates, and the watch history with denormalized video
// owners.
//
// Both views are computed in a single round trip against Postgres, so the
// counts and the isSubscribed flag are exact at read time. Watch history is
// returned in stored append order and is never re-sorted.
package channel
