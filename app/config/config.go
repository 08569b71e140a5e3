// Package config provides a go-simpler.org/env configuration table and
// helpers for working with the list of key/value lists stored in .env
// files, grounded on the teacher's app/config/config.go: the same
// go-simpler.org/env + github.com/adrg/xdg combination, the same
// env/help CLI subcommands, and the same KVSlice.Compose/EnvKV/PrintEnv
// helper set, rebuilt for the print broker's configuration table (spec §6)
// under a PRINTD_ environment prefix in place of the teacher's ORLY_.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go-simpler.org/env"
	lol "lol.mleku.dev"
	"lol.mleku.dev/chk"
)

// Version is the print broker's reported version string.
const Version = "1.0.0"

// C holds application configuration settings loaded from environment
// variables and default values, per spec §6's configuration table.
type C struct {
	AppName string `env:"PRINTD_APP_NAME" usage:"name to display on information about the broker" default:"printd"`
	DataDir string `env:"PRINTD_DATA_DIR" usage:"storage location for the job store" default:"~/.local/share/printd"`

	// server.host / server.port
	Listen string `env:"PRINTD_SERVER_HOST" default:"0.0.0.0" usage:"network listen address"`
	Port   int    `env:"PRINTD_SERVER_PORT" default:"9100" usage:"port to listen on"`

	ReadDeadlineSeconds int `env:"PRINTD_READ_DEADLINE_SECONDS" default:"30" usage:"per-connection read deadline for the frame header and body"`

	// security.*
	TLSEnabled           bool   `env:"PRINTD_TLS_ENABLED" default:"true" usage:"serve TLS on the listener; when false the broker logs a warning and listens on plain TCP"`
	CertFile             string `env:"PRINTD_CERTFILE" usage:"TLS certificate file"`
	KeyFile              string `env:"PRINTD_KEYFILE" usage:"TLS private key file"`
	CAFile               string `env:"PRINTD_CAFILE" usage:"TLS client CA bundle; when set, mTLS is required"`
	JWTSecretKey         string `env:"PRINTD_JWT_SECRET_KEY" usage:"bearer token signing key; absent generates an ephemeral per-process key"`
	TokenExpirationHours int    `env:"PRINTD_TOKEN_EXPIRATION_HOURS" default:"24" usage:"bearer token lifetime in hours"`
	RequestsPerMinute    int    `env:"PRINTD_REQUESTS_PER_MINUTE" default:"60" usage:"rate limiter requests-per-minute budget, per principal"`
	BurstSize            int    `env:"PRINTD_BURST_SIZE" default:"0" usage:"rate limiter burst size; 0 defaults to 2x requests-per-minute"`
	MaxFileSizeMB        int    `env:"PRINTD_MAX_FILE_SIZE_MB" default:"100" usage:"maximum accepted print payload size in megabytes"`

	// printer.*
	PrinterName string `env:"PRINTD_PRINTER_NAME" usage:"name of the OS printer to target; empty selects the system default"`
	UseMock     bool   `env:"PRINTD_PRINTER_USE_MOCK" default:"false" usage:"use the recording mock backend instead of a native spooler"`

	// database.url / temp_folder
	DatabaseURL string `env:"PRINTD_DATABASE_URL" usage:"job store data directory (embedded store, not a network DSN)"`
	TempFolder  string `env:"PRINTD_TEMP_FOLDER" usage:"directory print payloads are materialized under"`

	// metrics.*
	MetricsPort int `env:"PRINTD_METRICS_PORT" default:"0" usage:"optional Prometheus /metrics and /healthz HTTP port; 0 disables"`

	LogLevel    string `env:"PRINTD_LOG_LEVEL" default:"info" usage:"broker log level: fatal error warn info debug trace"`
	DBLogLevel  string `env:"PRINTD_DB_LOG_LEVEL" default:"info" usage:"store log level: fatal error warn info debug trace; not applied, the store logs through the broker logger"`
	LogToStdout bool   `env:"PRINTD_LOG_TO_STDOUT" default:"false" usage:"log to stdout instead of stderr"`
	Pprof       string `env:"PRINTD_PPROF" usage:"enable pprof in modes: cpu,memory,allocation"`

	CleanupOldJobsDays int `env:"PRINTD_CLEANUP_OLD_JOBS_DAYS" default:"30" usage:"age in days of terminal jobs to delete; the broker runs no cleanup sweep and does not read this value"`
}

// New loads configuration from the environment, applies XDG-based
// defaults for any unset directory, and configures logging, per the
// teacher's config.New.
func New() (cfg *C, err error) {
	cfg = &C{}
	if err = env.Load(cfg, &env.Options{SliceSep: ","}); chk.T(err) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %s\n\n", err)
		}
		PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	if cfg.DataDir == "" || strings.Contains(cfg.DataDir, "~") {
		cfg.DataDir = filepath.Join(xdg.DataHome, cfg.AppName)
	}
	if cfg.TempFolder == "" {
		cfg.TempFolder = filepath.Join(cfg.DataDir, "spool")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = filepath.Join(cfg.DataDir, "store")
	}
	if GetEnv() {
		PrintEnv(cfg, os.Stdout)
		os.Exit(0)
	}
	if HelpRequested() {
		PrintHelp(cfg, os.Stderr)
		os.Exit(0)
	}
	if cfg.LogToStdout {
		lol.Writer = os.Stdout
	}
	lol.SetLogLevel(cfg.LogLevel)
	return
}

// HelpRequested reports whether the first command line argument is a help
// flag.
func HelpRequested() (help bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "help", "-h", "--h", "-help", "--help", "?":
			help = true
		}
	}
	return
}

// GetEnv reports whether the first command line argument is "env".
func GetEnv() (requested bool) {
	if len(os.Args) > 1 {
		switch strings.ToLower(os.Args[1]) {
		case "env":
			requested = true
		}
	}
	return
}

// KV is a key/value pair.
type KV struct{ Key, Value string }

// KVSlice is a sortable slice of key/value pairs.
type KVSlice []KV

func (kv KVSlice) Len() int           { return len(kv) }
func (kv KVSlice) Less(i, j int) bool { return kv[i].Key < kv[j].Key }
func (kv KVSlice) Swap(i, j int)      { kv[i], kv[j] = kv[j], kv[i] }

// Compose merges two KVSlice instances, with kv2 taking precedence on
// duplicate keys.
func (kv KVSlice) Compose(kv2 KVSlice) (out KVSlice) {
	for _, p := range kv {
		out = append(out, p)
	}
out:
	for i, p := range kv2 {
		for j, q := range out {
			if p.Key == q.Key {
				out[j].Value = kv2[i].Value
				continue out
			}
		}
		out = append(out, p)
	}
	return
}

// EnvKV generates key/value pairs from a configuration object's struct
// tags.
func EnvKV(cfg any) (m KVSlice) {
	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		v := reflect.ValueOf(cfg).Field(i).Interface()
		var val string
		switch v.(type) {
		case string:
			val = v.(string)
		case int, bool, time.Duration:
			val = fmt.Sprint(v)
		case []string:
			arr := v.([]string)
			if len(arr) > 0 {
				val = strings.Join(arr, ",")
			}
		}
		if k == "" {
			continue
		}
		m = append(m, KV{k, val})
	}
	return
}

// PrintEnv outputs sorted environment key/value pairs to printer.
func PrintEnv(cfg *C, printer io.Writer) {
	kvs := EnvKV(*cfg)
	sort.Sort(kvs)
	for _, v := range kvs {
		_, _ = fmt.Fprintf(printer, "%s=%s\n", v.Key, v.Value)
	}
}

// PrintHelp prints application version, environment variable usage, and
// current configuration to printer.
func PrintHelp(cfg *C, printer io.Writer) {
	_, _ = fmt.Fprintf(printer, "%s %s\n\n", cfg.AppName, Version)
	_, _ = fmt.Fprintf(
		printer,
		`Usage: %s [env|help]

- env: print environment variables configuring %s
- help: print this help text

`,
		cfg.AppName, cfg.AppName,
	)
	_, _ = fmt.Fprintf(printer, "Environment variables that configure %s:\n\n", cfg.AppName)
	env.Usage(cfg, printer, &env.Options{SliceSep: ","})
	fmt.Fprintf(printer, "\ncurrent configuration:\n\n")
	PrintEnv(cfg, printer)
	fmt.Fprintln(printer)
	return
}
