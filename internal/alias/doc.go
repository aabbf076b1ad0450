// Package alias infers which interfaces of a neighborhood belong to the same
// router.
//
// Each interface gets a Fingerprint built from its probe hint. Fingerprints are
// sorted so that interfaces eligible for the same grouping policy end up next
// to each other, then each run of equal fingerprints is split into routers with
// the Ally test, IP-ID velocity overlap and reverse DNS names.
package alias
