// Package config loads tgstate settings with koanf.
//
// Sources, later ones overriding earlier:
//  1. Built-in defaults
//  2. YAML file (<home>/config.yaml, or an explicit path)
//  3. Environment variables prefixed TGSTATE_ (a double underscore
//     separates nested keys: TGSTATE_LOG__LEVEL=debug)
//  4. Command-line flags passed as a map
package config
