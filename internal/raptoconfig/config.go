// Package raptoconfig holds the server's configuration, sourced
// entirely from CLI flags (this server has no configuration file),
// with the same Default/Verify/Sanitize split production
// configuration packages use.
package raptoconfig

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// Verbosity levels accepted by --verbose.
const (
	VerboseSilent   = "silent"
	VerboseWarnings = "warnings"
	VerboseNoisy    = "noisy"
)

const (
	defaultAddrPort = "RANDOM(10000..19999)"
	tlsDefaultAddr  = "127.0.0.1:8443"
	defaultHost     = "127.0.0.1"
	minRandomPort   = 10000
	maxRandomPort   = 19999
)

// Config is the fully resolved server configuration.
type Config struct {
	Name    string
	Addr    string
	DBPath  string
	Verbose string
	TLS     bool
	Auth    string // empty means disabled
	DBSize  uint64

	SaveDelaySeconds int64
	SaveCount        int64
}

// Default returns a Config with every optional field at its
// specification-mandated default. Name, and DBSize unless the backing
// file already exists, must still be supplied by the caller.
func Default() *Config {
	return &Config{
		Addr:             "",
		DBPath:           ".",
		Verbose:          VerboseWarnings,
		TLS:              false,
		SaveDelaySeconds: 0,
		SaveCount:        0,
	}
}

// ResolveAddr fills in Addr when the caller left it blank: a random
// high port when TLS is off, the fixed TLS default address when on.
func (c *Config) ResolveAddr() {
	if c.Addr != "" {
		return
	}
	if c.TLS {
		c.Addr = tlsDefaultAddr
		return
	}
	port := minRandomPort + rand.Intn(maxRandomPort-minRandomPort+1)
	c.Addr = fmt.Sprintf("%s:%d", defaultHost, port)
}

// StoragePath returns the path of this database's backing file,
// normalizing Windows-style backslashes to forward slashes.
func (c *Config) StoragePath() string {
	dbPath := strings.ReplaceAll(c.DBPath, "\\", "/")
	return filepath.Join(dbPath, c.Name+".raptodb")
}

// Verify validates a Config, applying the cross-field rules the
// specification requires: auth implies tls (silently upgraded, not
// rejected), name is mandatory, and db-size is mandatory unless the
// storage file already exists on disk.
func (c *Config) Verify() error {
	if c.Name == "" {
		return errors.New("--name is required")
	}
	if c.Auth != "" && !c.TLS {
		c.TLS = true
	}

	if info, err := os.Stat(c.StoragePath()); err == nil {
		if uint64(info.Size()) > c.DBSize {
			c.DBSize = uint64(info.Size())
		}
	} else if c.DBSize == 0 {
		return errors.New("--db-size is required when the storage file does not already exist")
	}

	if c.SaveCount < 1 {
		c.SaveCount = 1
	}
	return nil
}

// Sanitize returns a copy of c with the auth password masked, safe to
// log or print.
func (c *Config) Sanitize() *Config {
	clone := *c
	if clone.Auth != "" {
		clone.Auth = maskSecret(clone.Auth)
	}
	return &clone
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
