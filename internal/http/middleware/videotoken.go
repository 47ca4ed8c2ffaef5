package middleware

import (
	"context"
	"net/http"

	"github.com/tendant/video-guard/internal/httputil"
	"github.com/tendant/video-guard/pkg/domain"
	"github.com/tendant/video-guard/pkg/guard"
)

// VideoTokenHeader is the request header carrying the video access token.
const VideoTokenHeader = "X-Video-Token"

// VideoToken creates the guard middleware protecting video-serving
// endpoints. It verifies the token against its backing session and the
// requesting device, then attaches the verified access to the request
// context. Every rejection is terminal and carries a stable error code.
func VideoToken(g *guard.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, err := g.VerifyToken(r.Context(), r.Header.Get(VideoTokenHeader), guard.ContextFromRequest(r))
			if err != nil {
				httputil.GuardError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), VideoAccessKey, access)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetVideoAccess extracts the verified video access from the request context.
func GetVideoAccess(ctx context.Context) (*domain.VideoAccess, bool) {
	access, ok := ctx.Value(VideoAccessKey).(*domain.VideoAccess)
	return access, ok
}
