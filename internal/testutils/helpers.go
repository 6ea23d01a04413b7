package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitepack/internal/config"
)

// DemoManifest is the package.json of the demo site.
const DemoManifest = `{
  "name": "demo",
  "version": "1.0.0",
  "devDependencies": {
    "webpack": "^5.70.0",
    "bootstrap": "^5.2.0"
  }
}
`

// DemoSite maps project-relative paths to the sources of the demo site.
var DemoSite = map[string]string{
	"package.json": DemoManifest,
	"src/js/index.js": `import '../scss/main.scss';

const greeting = document.querySelector('[data-greeting]');
if (greeting) {
  greeting.textContent = 'Hello from the bundle';
}
`,
	"src/scss/main.scss": `$primary: #0d6efd;

body {
  color: $primary;
}
`,
	"src/templates/partials/header.hbs": `<header class="navbar">
  <a class="navbar-brand" href="index.html">{{siteName}}</a>
</header>
`,
	"src/templates/partials/footer.hbs": `<footer class="footer">
  <p>&copy; {{copyrightYear}} {{siteName}}. Last updated {{lastUpdated}}.</p>
  <p>Webpack {{versions.webpack}}, Bootstrap {{versions.bootstrap}}</p>
</footer>
`,
	"src/templates/pages/home.hbs": `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{siteName}}</title>
</head>
<body>
  {{> header}}
  <main>
    <p data-greeting>{{{description}}}</p>
    <img src="/assets/images/logo.svg" alt="logo">
  </main>
  {{> footer}}
</body>
</html>
`,
	"src/templates/pages/about.hbs": `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>About {{siteName}}</title>
</head>
<body>
  {{> header}}
  <main>
    <h1>About</h1>
    <p>Built with webpack {{versions.webpack}}.</p>
  </main>
  {{> footer}}
</body>
</html>
`,
	"src/assets/images/logo.svg": `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16"><rect width="16" height="16"/></svg>
`,
}

// CreateTempProject writes the demo site into a temporary directory and
// returns its path.
func CreateTempProject(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	for rel, content := range DemoSite {
		WriteFile(t, tempDir, rel, content)
	}

	return tempDir
}

// WriteFile writes content to dir/rel, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// CreateTestConfig returns the canonical configuration.
func CreateTestConfig() *config.Config {
	return &config.Config{
		Target:   config.DefaultTarget(),
		Variants: map[string]config.TargetConfig{},
	}
}

// FixedClock returns a clock stopped at 09:05:03 AEDT on 17 October 2026.
func FixedClock() func() time.Time {
	sydney := time.FixedZone("AEDT", 11*60*60)
	at := time.Date(2026, time.October, 17, 9, 5, 3, 0, sydney)

	return func() time.Time { return at }
}

// SecurityTestCases provides common path attack vectors
var SecurityTestCases = struct {
	PathTraversal    []string
	CommandInjection []string
}{
	PathTraversal: []string{
		"../../../etc/passwd",
		"../outside",
		"dist/../../escape",
		"/./../../etc/passwd",
	},
	CommandInjection: []string{
		"dist; rm -rf /",
		"dist && rm -rf /",
		"dist | cat",
		"dist`whoami`",
		"dist$(whoami)",
	},
}

// WaitForFile waits for path to exist (useful for testing file watchers)
func WaitForFile(t *testing.T, path string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s did not appear within %v", path, timeout)
}
