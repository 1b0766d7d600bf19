package chat

import "time"

// SetNow overrides the controller's clock in tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}
