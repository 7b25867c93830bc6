// Package speedlimit throttles the rate at which elements are drawn from a
// sequence using a token bucket, and detects a consumer that persistently
// fails to keep up with a configured minimum rate.
//
// A Limiter governs exactly one sequential consumption stream. Wrap applies
// it to an arbitrary sequence, NewReader to an io.Reader.
package speedlimit
