// Package extract turns rendered listing elements into typed records.
//
// The package is the decision core of partscout: it resolves each field through an
// ordered chain of strategies, drops malformed elements without aborting the batch,
// filters sold items to an inclusive price band, and aggregates the survivors by exact
// item name. It never blocks and never returns an error to the caller; diagnostics flow
// to an optional Observer instead.
package extract
