// Package services defines shared primitives consumed by every pipeline stage.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, account IDs, job states, and
//     correlation identifiers for logging.
//   - The job failure taxonomy: sentinel markers, typed limit errors, the Wrap
//     helper, and Kind for persisting a stable error name.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
