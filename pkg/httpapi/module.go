package httpapi

import (
	"net/http"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/health"
	"creator-ledger/pkg/metrics"
	"creator-ledger/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		middleware.NewEnforcer,
		NewEngine,
		fx.Annotate(
			func(e *gin.Engine) http.Handler { return e },
			fx.ResultTags(`name:"http.handler"`),
		),
	),
)

// Routes are the route groups a service registers its handlers on.
type Routes struct {
	// Creator routes require X-Creator-ID.
	Creator *gin.RouterGroup
	// Admin routes require X-Admin-ID and a role allowed by the enforcer.
	Admin *gin.RouterGroup
	// Internal routes are for trusted collaborators such as the view counter.
	Internal *gin.RouterGroup
}

type Router interface {
	RegisterRoutes(r Routes)
}

// AsRouter annotates a handler constructor so NewEngine picks it up.
func AsRouter(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Router)),
		fx.ResultTags(`group:"routes"`),
	)
}

type EngineParams struct {
	fx.In
	Config   *config.Config
	Health   health.HealthService
	Enforcer *casbin.Enforcer
	Routers  []Router `group:"routes"`
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Config != nil && p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		tracing(),
		metrics.Middleware(),
	)
	r.GET("/healthz", p.Health.Liveness)
	r.GET("/readyz", p.Health.Readiness)
	r.GET("/metrics", metrics.Handler())

	Mount(r, p.Enforcer, p.Routers...)
	return r
}

// Mount installs the request middleware and registers routers on the
// creator, admin and internal groups.
func Mount(r *gin.Engine, enforcer *casbin.Enforcer, routers ...Router) {
	r.Use(
		middleware.RequestID(),
		middleware.Error(),
		middleware.Identity(),
	)

	routes := Routes{
		Creator:  r.Group("/v1", middleware.RequireCreator()),
		Admin:    r.Group("/admin", middleware.Authorize(enforcer)),
		Internal: r.Group("/internal"),
	}

	for _, router := range routers {
		router.RegisterRoutes(routes)
	}
}

// tracing starts a server span per request, continuing incoming trace context.
func tracing() gin.HandlerFunc {
	tracer := otel.Tracer("creator-ledger/http")
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}
