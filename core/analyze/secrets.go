package analyze

import (
	"regexp"
	"strings"
)

// SecretPattern is one secret shape the scanner looks for.
type SecretPattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
}

// SecretDetector matches lines against an ordered pattern table.
type SecretDetector struct {
	patterns []SecretPattern
}

// NewSecretDetector creates a detector with the default pattern set.
func NewSecretDetector() *SecretDetector {
	sd := &SecretDetector{}
	sd.addDefaultPatterns()
	return sd
}

// addDefaultPatterns registers patterns from most to least specific. The first match on a
// line wins, so the specific formats must precede the generic assignment pattern.
func (sd *SecretDetector) addDefaultPatterns() {
	// Private keys
	sd.addPattern("private-key", `-----BEGIN ((RSA|DSA|EC|OPENSSH|PGP|ENCRYPTED) )?PRIVATE KEY( BLOCK)?-----`, "private key")

	// Cloud provider keys
	sd.addPattern("aws-access-key", `\b(AKIA|ASIA)[0-9A-Z]{16}\b`, "AWS access key ID")
	sd.addPattern("aws-secret-key", `(?i)aws[_-]?secret[_-]?access[_-]?key["']?\s*[:=]\s*["']?[A-Za-z0-9/+=]{40}\b`, "AWS secret access key")
	sd.addPattern("google-api-key", `\bAIza[0-9A-Za-z_\-]{35}`, "Google API key")

	// Source hosting and chat tokens
	sd.addPattern("github-token", `\bgh[pousr]_[A-Za-z0-9]{36,}\b`, "GitHub token")
	sd.addPattern("github-pat", `\bgithub_pat_[A-Za-z0-9_]{22,}`, "GitHub fine-grained token")
	sd.addPattern("gitlab-token", `\bglpat-[A-Za-z0-9\-_]{20,}`, "GitLab personal access token")
	sd.addPattern("slack-token", `\bxox[abprs]-[0-9A-Za-z\-]{10,}`, "Slack token")

	// Payment providers
	sd.addPattern("stripe-live-key", `\b[rs]k_live_[0-9a-zA-Z]{24,}`, "Stripe live key")

	// Connection strings with embedded credentials
	sd.addPattern("credentialed-url", `(?i)\b[a-z][a-z0-9+.\-]*://[^\s:/@"']+:[^\s:/@"']+@[^\s/"']+`, "connection string with embedded credentials")

	// Generic assignments
	sd.addPattern("generic-secret", `(?i)\b(api[_-]?key|secret[_-]?key|client[_-]?secret|access[_-]?token|auth[_-]?token|password|passwd)["']?\s*[:=]\s*["'][^"'\s]{12,}["']`, "hard-coded API key or secret")
}

func (sd *SecretDetector) addPattern(name, pattern, description string) {
	sd.patterns = append(sd.patterns, SecretPattern{
		Name:        name,
		Pattern:     regexp.MustCompile(pattern),
		Description: description,
	})
}

// SecretHit is a line that matched a pattern. It never carries the matched text.
type SecretHit struct {
	Line    int
	Pattern SecretPattern
}

// ScanLines reports at most one hit per line: the first pattern that matches.
func (sd *SecretDetector) ScanLines(content string) []SecretHit {
	var hits []SecretHit
	for i, line := range strings.Split(content, "\n") {
		for _, p := range sd.patterns {
			if p.Pattern.MatchString(line) {
				hits = append(hits, SecretHit{Line: i + 1, Pattern: p})
				break
			}
		}
	}
	return hits
}
