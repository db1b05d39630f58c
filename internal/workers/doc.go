/*
Package workers sizes the worker pools used while cataloguing.

Building an asset reads the file, hashes it and decodes a thumbnail, so the
indexer uses ForMixed; the sync executor mostly copies bytes and uses ForIO.
Both scale from runtime.GOMAXPROCS(0), which Go sets from the container CPU
limit, rather than runtime.NumCPU().

	n := workers.ForMixed(cfg.BatchSize)

Operators can pin the count with the CATALOG_WORKERS environment variable:

	CATALOG_WORKERS=2 media-catalog
*/
package workers
