package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

var dsnSchemeRe = regexp.MustCompile(`^[a-z]+://`)

// looksLikeDSN reports whether s matches the real-DSN shape of spec.md
// §4.I ("if it matches /^[a-z]+:\/\//"); otherwise the caller should
// re-interpret s as an instance name.
func looksLikeDSN(s string) bool {
	return dsnSchemeRe.MatchString(s)
}

// parseDSN parses a real connection DSN into an Options layer.
func parseDSN(dsn string) (Options, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Options{}, verrors.ConnectionFailed(fmt.Sprintf("malformed DSN: %v", err)).Err()
	}

	var o Options
	if u.Host != "" {
		host := u.Hostname()
		o.Host = &host
		if p := u.Port(); p != "" {
			port, err := strconv.Atoi(p)
			if err != nil {
				return Options{}, verrors.ConnectionFailed("malformed DSN port").Err()
			}
			o.Port = &port
		}
	}
	if u.User != nil {
		user := u.User.Username()
		o.User = &user
		if pw, ok := u.User.Password(); ok {
			o.Password = &pw
		}
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		o.Database = &db
	}

	q := u.Query()
	if v := q.Get("database"); v != "" {
		o.Database = &v
	}
	if v := q.Get("branch"); v != "" {
		o.Branch = &v
	}
	if v := q.Get("tls_security"); v != "" {
		o.TLSSecurity = &v
	}
	if v := q.Get("tls_server_name"); v != "" {
		o.TLSServerName = &v
	}
	if v := q.Get("tls_ca_file"); v != "" {
		o.TLSCAFile = &v
	}
	o.ServerSettings = map[string]string{}
	for k, vs := range q {
		switch k {
		case "database", "branch", "tls_security", "tls_server_name", "tls_ca_file":
		default:
			if len(vs) > 0 {
				o.ServerSettings[k] = vs[0]
			}
		}
	}

	return o, nil
}
