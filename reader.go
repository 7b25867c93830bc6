package speedlimit

import "io"

// Reader throttles reads from an underlying io.Reader, counting one token
// per byte.
type Reader struct {
	l *Limiter
	r io.Reader
}

// NewReader wraps r with l. The limiter must not be shared with another
// consumer while the returned Reader is in use.
func NewReader(l *Limiter, r io.Reader) *Reader {
	return &Reader{l: l, r: r}
}

// Read acquires tokens for the requested chunk before performing the read,
// capping the chunk at the bucket's burst reserve so a single large buffer
// never stalls for more than the reserve's worth of tics at once. Tokens for
// a short read stay consumed; over-reservation is the price of throttling
// ahead of the operation.
func (r *Reader) Read(p []byte) (int, error) {
	chunk := len(p)
	if burst := r.l.burstTokens(); float64(chunk) > burst {
		chunk = int(burst)
		if chunk < 1 {
			chunk = 1
		}
	}
	if chunk == 0 {
		return r.r.Read(p)
	}

	if err := r.l.admit(float64(chunk)); err != nil {
		return 0, err
	}

	return r.r.Read(p[:chunk])
}
