// Package shop defines the storefront aggregate: a Shop and its dependent
// Services, Staff and Discounts.
//
// It also holds the pure helpers every other package applies at merge
// points: [Dedupe], business-hour normalization, record codecs and
// validation. Nothing here performs I/O.
package shop
