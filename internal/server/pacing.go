package server

import (
	"go.uber.org/zap"

	"arcade/internal/game"
	"arcade/internal/session"
)

// started publishes a freshly started match and schedules its first step.
func (s *Server) started(sess *session.Session) {
	sess.Lock()
	s.scheduleLocked(sess)
	sess.Unlock()
	s.publish(sess, nil)
}

// Resume arms the pending step of every session that holds a match, such
// as the ones just restored from storage. Call it once the manager has
// restored its sessions.
func (s *Server) Resume() {
	for _, info := range s.manager.List() {
		sess, ok := s.manager.Get(info.Code)
		if !ok {
			continue
		}
		sess.Lock()
		if sess.Match != nil {
			s.scheduleLocked(sess)
		}
		sess.Unlock()
	}
}

// scheduleLocked asks a paced match for its next step and arms the session
// timer for it. Matches without pacing are left alone. Caller must hold the
// session lock.
func (s *Server) scheduleLocked(sess *session.Session) {
	paced, ok := sess.Match.(game.Paced)
	if !ok {
		return
	}
	delay, ok := paced.NextStep()
	if !ok {
		sess.StopTimerLocked()
		return
	}
	var results []game.PlayerResult
	sess.AfterLocked(delay, func() {
		if err := paced.Step(); err != nil {
			s.log.Warn("paced step", zap.String("session", sess.Code), zap.Error(err))
		}
		results = sess.SettleLocked()
		s.scheduleLocked(sess)
	}, func() {
		s.publish(sess, results)
	})
}

// publish records the results of a round that just ended, saves the match
// and sends every player the new state.
func (s *Server) publish(sess *session.Session, results []game.PlayerResult) {
	if err := s.manager.RecordResults(sess, results); err != nil {
		s.log.Error("record results", zap.String("session", sess.Code), zap.Error(err))
	}
	if err := s.manager.SaveMatchState(sess); err != nil {
		s.log.Error("save match state", zap.String("session", sess.Code), zap.Error(err))
	}
	s.broadcastState(sess)
}
