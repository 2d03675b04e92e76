// Command navigator fetches a page with a stateful browser and prints a
// JSON summary of it: status, title, links, forms and pipeline counters.
//
// Usage:
//
//	navigator [-config file] [-follow text] [-text] [-dev] URL
//
// Configuration comes from NAVIGATOR_* environment variables, or from a
// YAML or TOML file given with -config.
package main
