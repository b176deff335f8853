package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/and161185/cosmetics-shop/internal/limiter"
	"github.com/and161185/cosmetics-shop/internal/metrics"
	"github.com/and161185/cosmetics-shop/internal/model"
)

// Logging logs one line per request. Payloads are never logged.
func Logging(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &metrics.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
			next.ServeHTTP(rec, r)

			log.Info("http",
				zap.String("method", r.Method),
				zap.String("route", metrics.RouteTemplate(r)),
				zap.Int("status", rec.Status),
				zap.Duration("dur", time.Since(start)),
				zap.String("peer", r.RemoteAddr),
			)
		})
	}
}

// Recover turns a handler panic into a 500 envelope.
func Recover(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					log.Error("panic",
						zap.Any("reason", rv),
						zap.ByteString("stack", debug.Stack()),
						zap.String("route", metrics.RouteTemplate(r)),
					)
					failMsg(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS answers preflights for allowed origins and rejects the rest.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				if _, ok := allowed[origin]; !ok {
					failMsg(w, http.StatusForbidden, "CORS origin not allowed")
					return
				}
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the socket peer without port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// maxThrottled bounds the per-IP bucket map before it is reset.
const maxThrottled = 10000

// Throttle is a per-IP token bucket over the API.
type Throttle struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rate    rate.Limit
	burst   int
}

// NewThrottle allows rps requests per second per IP with the given burst.
func NewThrottle(rps float64, burst int) *Throttle {
	return &Throttle{buckets: make(map[string]*rate.Limiter), rate: rate.Limit(rps), burst: burst}
}

func (t *Throttle) bucket(ip string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buckets) >= maxThrottled {
		t.buckets = make(map[string]*rate.Limiter)
	}
	b, ok := t.buckets[ip]
	if !ok {
		b = rate.NewLimiter(t.rate, t.burst)
		t.buckets[ip] = b
	}
	return b
}

// Handler rejects requests over the bucket with 429.
func (t *Throttle) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !t.bucket(clientIP(r)).Allow() {
			metrics.RateLimited("throttle")
			w.Header().Set("Retry-After", "1")
			failMsg(w, http.StatusTooManyRequests, "Too many requests, please slow down.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearer extracts the token from an Authorization header with a case-insensitive scheme.
func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Authenticate requires a valid access token and stores the account in context.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearer(r)
		if tok == "" {
			failMsg(w, http.StatusUnauthorized, "Access token required")
			return
		}
		acc, err := a.auth.Authenticate(r.Context(), tok)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), acc)))
	})
}

// OptionalAuth attaches the account when a valid token is present and continues anonymously otherwise.
func (a *API) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := bearer(r); tok != "" {
			if acc, err := a.auth.Authenticate(r.Context(), tok); err == nil {
				r = r.WithContext(WithAccount(r.Context(), acc))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Authorize admits only the listed roles. It expects Authenticate to have run.
func Authorize(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acc, ok := AccountFromCtx(r.Context())
			if !ok {
				failMsg(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if acc.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			failMsg(w, http.StatusForbidden, "Insufficient permissions")
		})
	}
}

// Limit describes an attempt window for RateLimit.
type Limit struct {
	Scope   string
	Max     int
	Window  time.Duration
	ByEmail bool // key on the submitted email as well as the IP
}

// RateLimit counts attempts per client in the shared store. A store failure lets the request through.
func (a *API) RateLimit(l Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := l.Scope + ":" + clientIP(r)
			if l.ByEmail {
				key += ":" + peekEmail(r)
			}
			d, err := a.limits.Hit(r.Context(), key, l.Max, l.Window)
			if err != nil {
				a.log.Warn("rate limiter unavailable", zap.String("scope", l.Scope), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				metrics.RateLimited(l.Scope)
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(d)))
				failMsg(w, http.StatusTooManyRequests,
					fmt.Sprintf("Too many attempts. Please try again in %d minutes.", d.RetryMinutes()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retrySeconds(d limiter.Decision) int {
	s := int((d.RetryAfter + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}

// peekEmail reads the email field of a JSON body and restores the body for the handler.
func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	var probe struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(raw, &probe)
	return strings.ToLower(strings.TrimSpace(probe.Email))
}
