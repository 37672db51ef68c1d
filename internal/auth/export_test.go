package auth

import (
	"io"
	"time"
)

func SetRandReader(h *Argon2idHasher, r io.Reader) {
	h.rand = r
}

func SetClock(s *TokenService, now func() time.Time) {
	s.now = now
}
