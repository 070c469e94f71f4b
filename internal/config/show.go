package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as an annotated TOML
// summary to w. This powers "config show", giving users visibility into
// the effective values after every override layer has been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	if r.FromFile {
		ew.printf("# Effective configuration (file: %s)\n\n", r.Path)
	} else {
		ew.printf("# Effective configuration (defaults; %s not found)\n\n", r.Path)
	}

	renderServerSection(ew, &r.ServerConfig, r.EffectivePort())
	renderTransferSection(ew, &r.TransferConfig)
	renderLockSection(ew, &r.LockConfig)
	renderLoggingSection(ew, &r.LoggingConfig)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Later writes are no-ops, so callers chain printf calls freely.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderServerSection(ew *errWriter, s *ServerConfig, port int) {
	ew.printf("# server\n")
	ew.printf("credentials_file     = %q\n", s.CredentialsFile)
	ew.printf("port                 = %d\n", port)
	ew.printf("tls_mode             = %q\n", s.TLSMode)
	ew.printf("insecure_skip_verify = %t\n", s.InsecureSkipVerify)
	ew.printf("connect_timeout      = %q\n", s.ConnectTimeout)
	ew.printf("disable_epsv         = %t\n", s.DisableEPSV)
	ew.printf("\n")
}

func renderTransferSection(ew *errWriter, t *TransferConfig) {
	ew.printf("# transfers\n")
	ew.printf("transfer_banners = [%s]\n", joinQuoted(t.TransferBanners))
	ew.printf("\n")
}

func renderLockSection(ew *errWriter, l *LockConfig) {
	ew.printf("# locks\n")
	ew.printf("lock_file_name = %q\n", l.LockFileName)
	ew.printf("lock_expiry    = %q\n", l.LockExpiry)

	if l.LockOwner != "" {
		ew.printf("lock_owner     = %q\n", l.LockOwner)
	}

	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("# logging\n")
	ew.printf("log_level  = %q\n", l.LogLevel)
	ew.printf("log_format = %q\n", l.LogFormat)

	if l.LogFile != "" {
		ew.printf("log_file   = %q\n", l.LogFile)
	}
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
