// Package duplicates finds catalogued assets that share their content.
//
// Exact duplicates share the SHA-512 content hash. Similar assets have
// perceptual hashes within a Hamming distance of each other; assets without a
// usable perceptual hash never match.
package duplicates
