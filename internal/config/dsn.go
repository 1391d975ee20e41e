package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func trimmedParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// DSNValue returns the configured DSN verbatim, or formats one with the driver.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(orDefault(c.Host, defaultDBHost), strconv.Itoa(port))
	mc.User = orDefault(c.User, defaultDBUser)
	mc.Passwd = orDefault(c.Password, defaultDBPassword)
	mc.DBName = orDefault(c.Name, defaultDBName)
	mc.ParseTime = c.ParseTime
	if loc, err := time.LoadLocation(orDefault(c.Loc, defaultDBLoc)); err == nil {
		mc.Loc = loc
	}

	mc.Params = trimmedParams(c.Params)
	if _, ok := mc.Params["charset"]; !ok {
		mc.Params["charset"] = orDefault(c.Charset, defaultDBCharset)
	}
	return mc.FormatDSN()
}

// URLValue builds a redis:// URL accepted by redis.ParseURL.
func (c RedisRuntimeConfig) URLValue() string {
	if u := normalizeRedisRawURL(c.URL); u != "" {
		return u
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}

	scheme := strings.ToLower(strings.TrimSpace(c.Scheme))
	if scheme != "redis" && scheme != "rediss" {
		scheme = "redis"
		if c.TLS {
			scheme = "rediss"
		}
	}

	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(orDefault(c.Host, defaultRedisHost), strconv.Itoa(port)),
		Path:   "/" + strconv.Itoa(db),
	}
	user, pass := strings.TrimSpace(c.Username), strings.TrimSpace(c.Password)
	switch {
	case pass != "":
		u.User = neturl.UserPassword(user, pass)
	case user != "":
		u.User = neturl.User(user)
	}

	if params := trimmedParams(c.Params); len(params) > 0 {
		query := neturl.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		u.RawQuery = query.Encode()
	}
	return u.String()
}
