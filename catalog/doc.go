// Package catalog lists products joined with their prices and starts one-shot
// checkout sessions through a payment provider [Gateway].
//
// # Join rule
//
// Products and prices are fetched as one page each. A product takes the first
// price, in provider order, whose product id matches. Amounts are converted from
// minor units by dividing by 100.
//
// # What this package must NOT do
//
//   - Return a partial listing when either fetch fails.
//   - Retry provider calls.
package catalog
