// Package main provides catalogctl, a command line tool for one-shot
// catalog operations against the same data directory as the service.
//
// Configuration is read the way the service reads it: defaults, the TOML
// file named by CATALOG_CONFIG, a .env file and the environment.
//
// # Usage
//
//	catalogctl catalog                   # run one catalog pass
//	catalogctl duplicates                # list exact duplicates
//	catalogctl duplicates --similar 4    # list near-duplicates
//	catalogctl backup                    # write today's backup and prune old ones
//	catalogctl sync-folders              # apply the stored sync definitions
//	catalogctl definitions list|add|clear
//	catalogctl recent list|add
//
// Do not run catalog or backup while the service is running a pass on the
// same data directory.
package main
