package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const robotsMaxBodyBytes = 1 << 20

// RobotsPolicy answers whether a robot may visit a URL. An error means the
// check itself failed (network, parse); the caller decides what that implies.
type RobotsPolicy interface {
	Allowed(ctx context.Context, robot string, u *url.URL) (bool, error)
}

type robotsKey struct {
	domain string
	robot  string
}

// RobotsCache is a lazily-populated RobotsPolicy. Compiled matchers are keyed
// by (domain, robot name); the parsed robots.txt file is cached per domain so
// a second robot identity on the same domain never re-fetches the file.
// Entries are never evicted.
//
// The cache is only consulted from the workload loop, so it is not
// synchronized.
type RobotsCache struct {
	client *http.Client
	logger *zap.Logger

	groups map[robotsKey]*robotstxt.Group
	files  map[string]*robotstxt.RobotsData
}

// NewRobotsCache builds an empty cache with its own HTTP client.
func NewRobotsCache(logger *zap.Logger) *RobotsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsCache{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		groups: make(map[robotsKey]*robotstxt.Group),
		files:  make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed implements RobotsPolicy. A URL without a domain is always allowed;
// robots.txt has nothing to say about it.
func (c *RobotsCache) Allowed(ctx context.Context, robot string, u *url.URL) (bool, error) {
	domain := strings.ToLower(u.Hostname())
	if domain == "" {
		return true, nil
	}

	key := robotsKey{domain: domain, robot: robot}
	if group, ok := c.groups[key]; ok {
		return group == nil || group.Test(u.Path), nil
	}

	data, ok := c.files[domain]
	if !ok {
		var err error
		data, err = c.fetch(ctx, robot, u)
		if err != nil {
			return false, err
		}
		c.files[domain] = data
	}

	group := data.FindGroup(robot)
	c.groups[key] = group
	return group == nil || group.Test(u.Path), nil
}

func (c *RobotsCache) fetch(ctx context.Context, robot string, u *url.URL) (*robotstxt.RobotsData, error) {
	robotsURL := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", robot)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close robots response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots body: %w", err)
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots: %w", err)
	}
	c.logger.Debug("robots.txt cached",
		zap.String("domain", u.Hostname()),
		zap.Int("status", resp.StatusCode),
	)
	return data, nil
}
