// Package texforge optimizes mod texture assets in bulk.
//
// A run merges a prioritized mod list and the game data directory into a
// virtual filesystem, resolving conflicts so each logical path maps to
// exactly one winning file, loose or archived. Winning DDS textures are
// classified by naming convention and header contents, filtered against
// per-game exclusion rules, and converted through an external tool under
// bounded concurrency. A persistent completion cache keyed by content
// fingerprint and recipe makes reruns skip unchanged work.
//
// The subpackages are usable on their own: bsa reads archives, vfs merges
// sources, texture classifies, exclude filters, sched executes batches.
// This package wires them together behind one Run call.
package texforge
