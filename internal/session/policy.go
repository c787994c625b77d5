package session

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/armada-rental/rental-service/internal/domain"
)

//go:embed default_policy.yaml
var defaultPolicy []byte

// Policy maps route paths to guard options.
type Policy struct {
	Home   string
	Login  string
	routes []routeRule
}

type routeRule struct {
	path string
	opts GuardOptions
}

type policyFile struct {
	Home   string `yaml:"home"`
	Login  string `yaml:"login"`
	Routes []struct {
		Path        string   `yaml:"path"`
		RequireAuth bool     `yaml:"require_auth"`
		CheckAdmin  bool     `yaml:"check_admin"`
		Roles       []string `yaml:"roles"`
		Redirect    string   `yaml:"redirect"`
	} `yaml:"routes"`
}

// DefaultPolicy returns the built-in route policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("default route policy: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file. An empty path returns DefaultPolicy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route policy: %w", err)
	}
	return ParsePolicy(raw)
}

// ParsePolicy decodes a YAML route policy.
func ParsePolicy(raw []byte) (*Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode route policy: %w", err)
	}
	p := &Policy{Home: file.Home, Login: file.Login}
	if p.Home == "" {
		p.Home = DefaultHomeRoute
	}
	if p.Login == "" {
		p.Login = DefaultLoginRoute
	}
	seen := make(map[string]struct{}, len(file.Routes))
	for _, rt := range file.Routes {
		path := normalizePath(rt.Path)
		if path == "" {
			return nil, fmt.Errorf("route policy: empty path")
		}
		if _, dup := seen[path]; dup {
			return nil, fmt.Errorf("route policy: duplicate path %q", path)
		}
		seen[path] = struct{}{}

		opts := GuardOptions{
			RequireAuth:  rt.RequireAuth,
			CheckAdmin:   rt.CheckAdmin,
			RedirectPath: rt.Redirect,
		}
		for _, raw := range rt.Roles {
			role, ok := domain.ParseRole(raw)
			if !ok {
				return nil, fmt.Errorf("route policy: %s: unknown role %q", path, raw)
			}
			opts.AllowedRoles = append(opts.AllowedRoles, role)
		}
		if opts.RedirectPath == "" && (opts.RequireAuth || opts.CheckAdmin || len(opts.AllowedRoles) > 0) {
			opts.RedirectPath = p.Login
		}
		p.routes = append(p.routes, routeRule{path: path, opts: opts})
	}
	return p, nil
}

// Lookup returns the options of the longest rule that prefixes path.
func (p *Policy) Lookup(path string) (GuardOptions, bool) {
	if p == nil {
		return GuardOptions{}, false
	}
	path = normalizePath(path)
	best := -1
	for i, rt := range p.routes {
		if !matchesPrefix(path, rt.path) {
			continue
		}
		if best < 0 || len(rt.path) > len(p.routes[best].path) {
			best = i
		}
	}
	if best < 0 {
		return GuardOptions{}, false
	}
	return p.routes[best].opts, true
}

func matchesPrefix(path, prefix string) bool {
	if prefix == "/" || path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
