package config

import "strings"

type Cors struct{}

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

// GetAllowedOrigins reads a comma separated ALLOWED_ORIGINS list. "*" allows any origin.
func (Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	for _, origin := range strings.Split(GetEnv("ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins[origin] = nullValue{}
		}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type"
}
