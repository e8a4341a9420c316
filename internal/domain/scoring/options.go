package scoring

import "github.com/okian/rally/pkg/logger"

// Option configures a Board.
type Option func(*Board)

// WithWinningScore sets W.
func WithWinningScore(w int) Option {
	return func(b *Board) {
		if w > 0 && w < 100 {
			b.winning = w
		}
	}
}

// WithMaxScore pins the truncation threshold. Values below W are ignored.
func WithMaxScore(m int) Option {
	return func(b *Board) {
		if m > 0 && m < 100 {
			b.maxScore = m
			b.fixedMax = true
		}
	}
}

// WithOnComplete registers the callback fired once when every field is filled.
func WithOnComplete(fn func()) Option {
	return func(b *Board) { b.onComplete = fn }
}

// WithLogger sets the board logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Board) { b.log = logger.OrNop(l) }
}
