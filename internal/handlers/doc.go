// Package handlers provides HTTP request handlers for the catalog API.
//
// It includes handlers for:
//   - Health checks, pass status and recent catalog events
//   - Triggering a catalog pass and cataloguing single files
//   - Catalogued assets and their thumbnails
//   - Exact and near-duplicate groups
//   - Sync definitions and recent target paths
//   - Prometheus metrics
package handlers
