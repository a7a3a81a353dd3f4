// Package abuse classifies scanner traffic by request path and escalates
// repeat offenders to time-bounded IP bans.
package abuse

import "strings"

// SuspiciousPatterns classifies request paths that no legitimate client of
// this API would ever request. All matching is plain string comparison, no
// regex, so it is cheap enough to run on every request.
type SuspiciousPatterns struct {
	exact    map[string]struct{}
	prefixes []string
	suffixes []string
	contains []string
}

// DefaultPatterns builds the standard rule set: server-side scripting
// extensions, backup and config file names, CMS and admin-panel probes, and
// path-traversal sequences.
func DefaultPatterns() *SuspiciousPatterns {
	exact := []string{
		"/server-info", "/server-status", "/xmlrpc.php",
		"/database.yml", "/secrets.json", "/secrets.yml",
		"/docker.sh", "/Dockerfile", "/package.json", "/package-lock.json",
		"/api/info", "/api/config", "/api/debug", "/api/env",
		"/graphql", "/trace", "/test",
	}
	set := make(map[string]struct{}, len(exact))
	for _, p := range exact {
		set[p] = struct{}{}
	}
	return &SuspiciousPatterns{
		exact: set,
		prefixes: []string{
			// CMS probes
			"/wp-", "/wordpress/", "/blog/wp-", "/joomla/", "/administrator/",
			"/drupal/", "/magento/", "/downloader/", "/cms/",
			// Admin panel and DB probes
			"/phpmyadmin/", "/pma/", "/myadmin/", "/mysql/", "/dbadmin/",
			"/phpMyAdmin/",
			// Credential and config probes
			"/aws-credentials", "/credentials", "/config.php",
			// Debug and dev probes
			"/api/swagger", "/swagger", "/api-docs",
			"/actuator", "/jolokia/", "/console/", "/manager/",
			"/host-manager/", "/debug", "/dump",
			// Directory probes
			"/node_modules/", "/test/", "/tmp/", "/backup/", "/backups/",
			"/src/",
		},
		suffixes: []string{
			// Server-side scripting extensions
			".php", ".phtml", ".phar", ".asp", ".aspx", ".ashx", ".asmx",
			".jsp", ".jspx", ".do", ".action", ".cgi", ".pl", ".cfm", ".cfc",
			// Backup, config, and archive files
			".bak", ".backup", ".save", ".old", ".orig", ".swp", ".tmp",
			".sql", ".sql.gz", ".log", ".conf", ".ini",
			".yml", ".yaml", ".toml", ".xml",
			".sh", ".bash", ".bat", ".cmd",
			".tar", ".tar.gz", ".tgz", ".zip", ".rar", ".7z", ".gz", ".bz2",
		},
		contains: []string{
			// Path traversal
			"../",
		},
	}
}

// Matches reports whether the path hits any rule. Exact and prefix rules
// are case-sensitive; suffix rules match against the lowercased path so
// "/UPPER.PHP" is still caught.
func (p *SuspiciousPatterns) Matches(path string) bool {
	if _, ok := p.exact[path]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	lower := strings.ToLower(path)
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	for _, needle := range p.contains {
		if strings.Contains(path, needle) {
			return true
		}
	}
	return false
}
