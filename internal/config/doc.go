// Package config defines the amrsnap configuration.
//
// Values come from Default, then an optional YAML file, then AMRSNAP_*
// environment variables, then command-line flags. Load applies that chain
// through confloader and checks the result with Verify.
//
//	output:
//	  root: /scratch/run42/output
//	engine:
//	  workers: 8
//	cache:
//	  enabled: true
//	log:
//	  level: info
package config
