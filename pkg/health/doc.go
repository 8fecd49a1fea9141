/*
Package health provides reusable health/reachability checks used to probe
sync sources and sinks before and during a run.

This package implements HTTP and TCP checkers. surreal-sync uses HTTPChecker
in the sink autodetect probe: before a sync starts it checks a SurrealDB
endpoint's /health route, and the sink then reads the /version route to
choose between the v2 and v3 sink dialects. The process's own /health and
/ready endpoints are served by pkg/metrics, not by these checkers.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                   Checker Interface                          │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                         │
	└────────┬──────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┐
	    ▼           ▼
	┌────────┐  ┌──────┐
	│  HTTP  │  │ TCP  │
	│Checker │  │Checker│
	└────────┘  └──────┘
	     │          │
	     ▼          ▼
	  GET /      Connect
	  version     :port

# Health Check Types

HTTP Health Checks:

	Check Type: HTTP
	Configuration:
	├── URL: http://surrealdb:8000/version
	├── Method: GET, POST, HEAD
	├── Headers: Custom HTTP headers
	├── Expected Status: 200-399 (configurable)
	└── Timeout: 10 seconds

TCP Health Checks:

	Check Type: TCP
	Configuration:
	├── Address: postgres:5432
	├── Timeout: 5 seconds
	└── Connection test only (no data sent)

Use cases: confirming a source database's port is accepting connections
before starting a full sync, or probing a sink endpoint during autodetect.

# Core Components

Checker Interface:

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

Result:

	type Result struct {
		Healthy   bool
		Message   string
		CheckedAt time.Time
		Duration  time.Duration
	}

Status tracks health over time with hysteresis (ConsecutiveFailures /
ConsecutiveSuccesses) so a single transient probe failure doesn't flip a
source or sink from healthy to unhealthy.

# Usage

	import "github.com/surrealdb/surreal-sync/pkg/health"

	checker := health.NewHTTPChecker("http://surrealdb:8000/version")
	checker.WithTimeout(5 * time.Second)

	result := checker.Check(context.Background())
	if result.Healthy {
		// result.Message holds the HTTP status ("HTTP 200 OK"), not the response body
	}

	pgChecker := health.NewTCPChecker("postgres:5432")
	pgChecker.WithTimeout(3 * time.Second)

# Integration Points

This package integrates with:

  - pkg/sink/autodetect.go: Probes a SurrealDB endpoint to select v2 vs v3 apply semantics
  - cmd/surreal-sync: Exposes /health and /ready backed by pkg/metrics

# Design Patterns

Strategy Pattern: HTTPChecker and TCPChecker both implement Checker, so
callers select a check type without branching on it.

Builder Pattern: checkers use fluent With* methods for optional configuration.

# See Also

  - pkg/sink for how autodetect uses HTTPChecker
  - pkg/metrics for the /health and /ready HTTP handlers
*/
package health
