package session

import (
	"time"

	"go.uber.org/zap"
)

// Stats counts traffic for one session
type Stats struct {
	FramesIn   int
	PacketsOut int
	Pings      int
	BytesIn    int64
	BytesOut   int64
	Started    time.Time
}

// Elapsed returns the session duration so far
func (s *Stats) Elapsed() time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	return time.Since(s.Started)
}

func mbps(bytes int64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(bytes*8) / (secs * 1e6)
}

// Fields renders the stats as log fields for the session summary line
func (s *Stats) Fields() []zap.Field {
	elapsed := s.Elapsed()
	return []zap.Field{
		zap.Int("frames_in", s.FramesIn),
		zap.Int("packets_out", s.PacketsOut),
		zap.Int("pings", s.Pings),
		zap.Int64("bytes_in", s.BytesIn),
		zap.Int64("bytes_out", s.BytesOut),
		zap.Duration("duration", elapsed),
		zap.Float64("in_mbps", mbps(s.BytesIn, elapsed)),
		zap.Float64("out_mbps", mbps(s.BytesOut, elapsed)),
	}
}
