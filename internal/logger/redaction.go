package logger

import (
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// redactionRule replaces matches of re with repl. Rules that match a key
// keep the key and hide only the value.
type redactionRule struct {
	re   *regexp.Regexp
	repl string
}

// Redactor scrubs secrets from log lines. Drawer payloads are opaque and
// may carry wallet material, so extended keys and raw private keys are
// covered alongside gateway credentials.
type Redactor struct {
	rules []redactionRule
}

func keyed(key string) redactionRule {
	// Matches key followed by a quoted or bare value, in JSON or key=value form.
	re := regexp.MustCompile(`(?i)(` + key + `"?\s*[:=]\s*)("[^"]*"|[^\s",}]+)`)
	return redactionRule{re: re, repl: `${1}"` + redacted + `"`}
}

func whole(pattern string) redactionRule {
	return redactionRule{re: regexp.MustCompile(pattern), repl: redacted}
}

// NewRedactor creates a redactor with the built-in rules.
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []redactionRule{
			keyed(`X-Drawerq-Secret`),
			keyed(`shared_secret`),
			keyed(`mnemonic`),
			keyed(`seed`),
			keyed(`password`),
			keyed(`secret`),
			whole(`Bearer\s+[a-zA-Z0-9._-]+`),
			// BIP32 extended private keys
			whole(`\b[xyzt]prv[1-9A-HJ-NP-Za-km-z]{100,}`),
			// Raw 32-byte hex private keys
			whole(`\b0x[0-9a-fA-F]{64}\b`),
		},
	}
}

// AddPattern hides every match of pattern.
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, redactionRule{re: re, repl: redacted})
	return nil
}

// Redact applies every rule to s.
func (r *Redactor) Redact(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	return s
}

// Wrap returns a writer that redacts each line before writing it to w.
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{writer: w, redactor: r}
}

type redactingWriter struct {
	writer   io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; the redacted line may differ in length
// and zerolog treats a short count as a failed write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.writer, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
