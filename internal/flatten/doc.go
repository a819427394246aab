// Package flatten turns resolved media into single flat files. Export
// archives that pair a base frame with a decoration overlay are composited
// (images in-process, videos via ffmpeg); plain media passes through.
package flatten
