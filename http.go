package authclient

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGuardConfig configures the HTTP-facing guard adapter.
type RouteGuardConfig struct {
	// LoginPath is where unauthorized requests get redirected.
	// Defaults to "/login".
	LoginPath string
	// ContextKey is the locals key the current user is published under.
	// Defaults to "user".
	ContextKey string
	// RejectedRouteKey names the cookie remembering the route a visitor
	// was bounced from. Defaults to "rejected_route".
	RejectedRouteKey string
	// RejectedRouteDefault is the post-login destination when no
	// rejected route was recorded. Defaults to "/".
	RejectedRouteDefault string

	Exception *ExceptionPredicate
}

func (c RouteGuardConfig) loginPath() string {
	if c.LoginPath == "" {
		return "/login"
	}
	return c.LoginPath
}

func (c RouteGuardConfig) contextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c RouteGuardConfig) rejectedRouteKey() string {
	if c.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return c.RejectedRouteKey
}

func (c RouteGuardConfig) rejectedRouteDefault() string {
	if c.RejectedRouteDefault == "" {
		return "/"
	}
	return c.RejectedRouteDefault
}

// RouteGuard gates route handlers on the session's authorization
// status, the server-rendered counterpart of the pure Guard.
type RouteGuard struct {
	session *Session
	cfg     RouteGuardConfig
	Logger  Logger

	LoadingHandler      func(c router.Context, snap Snapshot) error
	UnauthorizedHandler func(c router.Context, snap Snapshot) error
	ErrorHandler        func(c router.Context, snap Snapshot) error
}

// NewRouteGuard builds the adapter. A nil session is a programmer error.
func NewRouteGuard(session *Session, cfg RouteGuardConfig) (*RouteGuard, error) {
	if session == nil {
		return nil, ErrSessionRequired
	}

	g := &RouteGuard{
		session: session,
		cfg:     cfg,
		Logger:  defLogger{},
	}

	g.LoadingHandler = g.defaultLoadingHandler
	g.UnauthorizedHandler = g.defaultUnauthorizedHandler
	g.ErrorHandler = g.defaultErrorHandler

	return g, nil
}

// Middleware returns the guard as route middleware: protected content
// becomes the next handler, everything else goes through the view
// handlers.
func (g *RouteGuard) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			snap := g.session.Snapshot()

			switch Evaluate(snap, g.cfg.Exception) {
			case RenderLoading:
				return g.LoadingHandler(ctx, snap)
			case RenderUnauthorized:
				return g.UnauthorizedHandler(ctx, snap)
			case RenderError:
				return g.ErrorHandler(ctx, snap)
			default:
				if snap.User != nil {
					ctx.Locals(g.cfg.contextKey(), snap.User)
				}
				return next(ctx)
			}
		}
	}
}

// GetRedirect pops the remembered rejected route, falling back to def.
func (g *RouteGuard) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := g.cfg.rejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return g.cfg.rejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

// GetRedirectOrDefault pops the rejected route, trying the referer
// before the configured default.
func (g *RouteGuard) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := g.cfg.rejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = g.cfg.rejectedRouteDefault()
	}
	g.cookieDel(ctx, rejectedRoute)
	return r
}

// SetRedirect remembers the current route so the visitor lands back on
// it after authenticating.
func (g *RouteGuard) SetRedirect(ctx router.Context) {
	rejectedRoute := g.cfg.rejectedRouteKey()

	g.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (g *RouteGuard) defaultLoadingHandler(ctx router.Context, _ Snapshot) error {
	return ctx.Render("auth/loading", router.ViewContext{})
}

func (g *RouteGuard) defaultUnauthorizedHandler(ctx router.Context, _ Snapshot) error {
	g.SetRedirect(ctx)

	statusCode := http.StatusSeeOther
	if ctx.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return ctx.Redirect(g.cfg.loginPath(), statusCode)
}

func (g *RouteGuard) defaultErrorHandler(ctx router.Context, snap Snapshot) error {
	code := snap.StatusCode
	if code == 0 {
		code = http.StatusInternalServerError
	}

	richErr := errors.New("authentication backend error", errors.CategoryInternal).
		WithCode(code).
		WithMetadata(map[string]any{
			"status": code,
		})

	g.Logger.Info(
		"Route guard error handler",
		"error", richErr.Message,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return ctx.Status(code).Render("errors/500", router.ViewContext{
		"error": richErr,
	})
}
