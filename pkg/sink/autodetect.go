package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/surrealdb/surreal-sync/pkg/health"
	"github.com/surrealdb/surreal-sync/pkg/log"
)

var (
	_ Sink = (*V2)(nil)
	_ Sink = (*V3)(nil)
)

// versionResponse is the shape of the target's /version endpoint across
// both SDK generations: a free-text string with a "surrealdb-<semver>"
// suffix.
type versionResponse = string

// Detect probes opts.Endpoint's health/version HTTP endpoint and returns a
// Sink implementation matching the reported major version, unless override
// is non-empty, in which case it is honored without probing.
func Detect(ctx context.Context, opts Options, override Version) (Sink, error) {
	if override != "" {
		return newForVersion(override, opts), nil
	}

	checker := health.NewHTTPChecker(strings.TrimRight(opts.Endpoint, "/") + "/health").WithTimeout(10 * time.Second)
	if res := checker.Check(ctx); !res.Healthy {
		return nil, fmt.Errorf("sink: target health check failed: %s", res.Message)
	}

	version, err := fetchVersion(ctx, opts)
	if err != nil {
		log.WithComponent("sink").Warn().Err(err).Msg("version probe failed, defaulting to v2 dialect")
		return newForVersion(VersionV2, opts), nil
	}

	major, err := majorVersion(version)
	if err != nil || major < 2 {
		return newForVersion(VersionV2, opts), nil
	}
	if major >= 3 {
		return newForVersion(VersionV3, opts), nil
	}
	return newForVersion(VersionV2, opts), nil
}

func newForVersion(v Version, opts Options) Sink {
	if v == VersionV3 {
		return NewV3(opts)
	}
	return NewV2(opts)
}

func fetchVersion(ctx context.Context, opts Options) (versionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(opts.Endpoint, "/")+"/version", nil)
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var body struct {
		Version string `json:"version"`
	}
	// The endpoint may answer with a bare string or a JSON object depending
	// on generation; try JSON first, fall back to treating the body as text.
	if err := json.Unmarshal(data, &body); err == nil && body.Version != "" {
		return body.Version, nil
	}
	if text := strings.Trim(strings.TrimSpace(string(data)), "\""); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("sink: could not parse version response")
}

// majorVersion extracts the leading integer from a "surrealdb-2.1.0" or
// "2.1.0" style version string.
func majorVersion(v string) (int, error) {
	v = strings.TrimPrefix(v, "surrealdb-")
	parts := strings.SplitN(v, ".", 2)
	if len(parts) == 0 {
		return 0, fmt.Errorf("empty version string")
	}
	return strconv.Atoi(parts[0])
}
