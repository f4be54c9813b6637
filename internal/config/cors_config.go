package config

import "strings"

type Cors struct {
	AllowedOriginList []string `env:"CORS_ALLOWED_ORIGINS,default=*"`
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := make(AllowedOrigins, len(c.AllowedOriginList))
	for _, o := range c.AllowedOriginList {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = nullValue{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, DELETE, OPTIONS"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization, Accept, Mcp-Session-Id, Mcp-Protocol-Version, X-Tenant-Api-Key, X-Request-Id"
}

func (Cors) GetExposedHeaders() string {
	return "Mcp-Session-Id, WWW-Authenticate"
}
