// Package confloader loads amrsnap configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Command-line flag overrides (WithOverrides)
//  2. Environment variables (AMRSNAP_SECTION_KEY)
//  3. YAML configuration file (WithConfigFile)
//  4. Values already present in the target struct
package confloader
