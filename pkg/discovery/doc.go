// Package discovery produces candidate edge addresses for probing. Two
// sources exist: A-record resolution of a provider hostname list, and
// stride-sampling of CIDR ranges into individual addresses. Both emit
// plain Candidate values; the same address may appear under multiple
// source labels and the prober's classifier deduplicates downstream.
package discovery
