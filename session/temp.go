package session

import (
	"context"
)

// TempConnect runs a single callback over a short-lived session: it builds
// the session from cfg, connects once, invokes callback with the capability
// facade, and unconditionally closes the link again — whether the callback
// succeeded, failed or panicked. It is meant for one-shot scripts that don't
// want a persistent queue.
//
// Unlike the queue-driven path, a failure to establish the connection is
// returned to the caller.
func TempConnect(ctx context.Context, cfg *Config, callback ResultAction) (any, error) {
	if callback == nil {
		return nil, ErrCallbackNil
	}

	s, err := NewSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Shutdown()

	if err := s.establish(ctx); err != nil {
		return nil, err
	}
	defer s.closeLink("temp session done")

	return s.runTempCallback(callback)
}

// runTempCallback invokes the callback with panic protection; a panic is
// logged and surfaces as an error result, never past TempConnect.
func (s *Session) runTempCallback(callback ResultAction) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
			value = nil
			s.logger.Error("callback error", "panic", r)
		}
	}()

	value, err = callback(s.facade)
	if err != nil {
		s.logger.Error("callback error", "error", err)
	}

	return value, err
}
