package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/classquiz/internal/profile"
)

type profileReq struct {
	Role        profile.Role `json:"role" validate:"required"`
	Name        string       `json:"name"`
	ClassKey    string       `json:"classKey"`
	SemesterKey string       `json:"semesterKey"`
	Roll        string       `json:"roll"`
	Password    string       `json:"password,omitempty"` // plaintext, hashed before storing
}

// PUT /profiles/{uid}
func PutProfileHandler(profiles *profile.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(chi.URLParam(r, "uid"))
		var req profileReq
		if err := decode(r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p := profile.Profile{
			UID:         uid,
			Role:        req.Role,
			Name:        req.Name,
			ClassKey:    req.ClassKey,
			SemesterKey: req.SemesterKey,
			Roll:        req.Roll,
		}
		if req.Password != "" {
			hash, err := profile.HashPassword(req.Password)
			if err != nil {
				writeError(w, log, r, err)
				return
			}
			p.PasswordHash = hash
		}
		if err := profiles.Put(r.Context(), p); err != nil {
			writeError(w, log, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
