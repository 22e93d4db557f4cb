package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/utils"
)

// AllowOnlyCIDRS restricts operator endpoints (readyz, infra, metrics) to
// the listed IPs/CIDRs. An empty list disables the filter.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m, invalid := utils.NewIPMatcher(allowed)
	for _, s := range invalid {
		log.Warn("ignoring invalid allowed CIDR", logger.String("entry", s))
	}
	if m.Len() == 0 {
		log.Debug("operator endpoints open to every address")
		return func(next http.Handler) http.Handler { return next }
	}
	log.Debug("operator endpoints restricted",
		logger.Int("rules", m.Len()),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("operator endpoint rejected",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				deny(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
