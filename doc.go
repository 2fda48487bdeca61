// Package easel implements a GPU-accelerated stroke and layer paint core.
//
// The engine turns timestamped pen input into layered raster artwork. Pixels
// on the GPU are treated as derived data: every raster buffer can be rebuilt
// from the CPU-held stroke, brush and layer history, so a total loss of GPU
// state (device or surface reset) is survivable.
//
// The pipeline has four stages:
//
//   - Tessellation: an ordered sequence of input samples plus a brush becomes
//     renderable geometry (stamp instances or a ribbon mesh), tagged with a
//     compositing operation.
//   - Accumulation: geometry is rasterized into the owning layer's buffer.
//     One stroke reads as one mark; overlapping stamps within a stroke never
//     double-darken.
//   - Planning: the ordered layer stack is compiled into a minimal sequence
//     of fused compositing passes that is value-equivalent to compositing
//     each layer in turn.
//   - Execution: the plan runs against the layer buffers, producing the
//     final canvas image.
//
// Use [Engine] as the entry point. Windowing, file formats, brush authoring
// and UI are collaborator concerns and stay outside this module.
package easel
