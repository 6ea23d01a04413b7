// Package internal contains the core implementation packages for sitepack.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: the .sitepack.yml schema, defaults, variant overlays and validation
//   - assembler: turns a configuration into the BuildConfiguration of one build
//   - manifest: reads the site name and dependency versions from package.json
//   - metadata: copyright year and the locale-formatted "last updated" stamp
//   - templates: Handlebars pages, partials and template modules
//   - markdown: optional Markdown page content
//   - styles: SCSS compilation
//   - build: bundling, fingerprinting, page finishing and atomic output
//   - watcher: debounced file system monitoring for the watch command
//   - errors: the configuration and template render error types
//   - logging: the structured logger
//   - version: release and engine version reporting
//
// # Inter-Package Communication
//
// Data flows one way through the packages:
//
//   - config produces the declarative Config
//   - assembler resolves it against the project into a BuildConfiguration
//   - build consumes the BuildConfiguration and produces a Result
//   - watcher reports changes; the watch command re-runs assembly and build
//
// # Security Considerations
//
//   - Config package rejects path traversal, absolute output paths and shell metacharacters
//   - Build package keeps inline asset references inside the assets root
//   - Output is staged and moved into place, so a failed build never leaves a partial site
//
// For detailed documentation, see the individual package documentation.
package internal
