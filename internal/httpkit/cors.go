package httpkit

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSOptions configures the browser access rules of the job API.
type CORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAgeSeconds    int
}

// originSet matches request origins against the configured list. A "*"
// entry admits every non-empty origin.
type originSet struct {
	any     bool
	origins map[string]struct{}
}

func newOriginSet(in []string) originSet {
	set := originSet{origins: make(map[string]struct{}, len(in))}
	for _, o := range in {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			set.any = true
		default:
			set.origins[o] = struct{}{}
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if origin == "" {
		return false
	}
	if s.any {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}

// CORS answers preflight requests itself and decorates allowed origins.
func CORS(opt CORSOptions) func(http.Handler) http.Handler {
	methods := opt.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	headers := opt.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization", "Accept", "X-Request-ID"}
	}
	maxAge := opt.MaxAgeSeconds
	if maxAge == 0 {
		maxAge = 600
	}

	origins := newOriginSet(opt.AllowedOrigins)
	static := map[string]string{
		"Access-Control-Allow-Methods": strings.Join(methods, ", "),
		"Access-Control-Allow-Headers": strings.Join(headers, ", "),
		"Access-Control-Max-Age":       strconv.Itoa(maxAge),
	}
	if len(opt.ExposedHeaders) > 0 {
		static["Access-Control-Expose-Headers"] = strings.Join(opt.ExposedHeaders, ", ")
	}
	if opt.AllowCredentials {
		static["Access-Control-Allow-Credentials"] = "true"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin := r.Header.Get("Origin"); origins.allows(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				for k, v := range static {
					h.Set(k, v)
				}
			}

			// preflight no llega al router
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
