// Package roster builds the per-robot view consumed by the dashboard.
//
// The backend exposes two independent identifier lists: every robot ever
// registered (the roster) and the robots currently connected (the online
// set). The Aggregator walks the roster in order and, for each identifier,
// emits either
//
//	Offline{Name: id}                        not in the online set
//	Online{Name: id, Detail, Network}        in the online set, hydrated with two fetches
//
// Detail and network fetches are only issued for online robots. By default
// they run one robot at a time; WithConcurrency allows several robots in
// flight while the output keeps roster order.
//
// Failure policy is all-or-nothing: the first failed fetch cancels the rest
// and Aggregate returns an *AggregationError with no entries.
package roster
