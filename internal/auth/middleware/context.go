package auth

import (
	"context"

	"github.com/mind-engage/classquiz/internal/profile"
)

type ctxKey int

const (
	ctxKeySub ctxKey = iota
	ctxKeyProfile
)

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeySub).(string)
	return s
}

func withProfile(ctx context.Context, p profile.Profile) context.Context {
	return context.WithValue(ctx, ctxKeyProfile, p)
}

// ProfileFromContext returns the profile attached by AttachProfile.
func ProfileFromContext(ctx context.Context) (profile.Profile, bool) {
	p, ok := ctx.Value(ctxKeyProfile).(profile.Profile)
	return p, ok
}
