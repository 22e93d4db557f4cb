package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/utils"
)

// hostRule is one LINKLOOM_ALLOWED_HOSTS entry, lowercased. A rule with a
// port only matches that port; "*.lan" matches any subdomain of lan.
type hostRule struct {
	suffix   string // set for wildcard rules, e.g. ".lan"
	exact    string
	withPort bool
}

func parseHostRules(hosts []string) []hostRule {
	rules := make([]hostRule, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case strings.HasPrefix(h, "*."):
			rules = append(rules, hostRule{suffix: h[1:]})
		default:
			rules = append(rules, hostRule{exact: h, withPort: utils.ParseHostNoPort(h) != h})
		}
	}
	return rules
}

func (hr hostRule) match(host, bare string) bool {
	switch {
	case hr.suffix != "":
		return strings.HasSuffix(bare, hr.suffix)
	case hr.withPort:
		return host == hr.exact
	default:
		return bare == hr.exact
	}
}

// EnforceHost rejects API requests whose Host header is not allowed. An
// empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	rules := parseHostRules(allowedHosts)
	if len(rules) == 0 {
		log.Debug("api open to every host")
		return func(next http.Handler) http.Handler { return next }
	}
	log.Debug("api restricted to allowed hosts", logger.Int("rules", len(rules)))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := strings.ToLower(r.Host)
			bare := utils.ParseHostNoPort(host)
			for _, rule := range rules {
				if rule.match(host, bare) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Debug("api host rejected", logger.String("host", r.Host))
			deny(w, http.StatusForbidden, "forbidden")
		})
	}
}
