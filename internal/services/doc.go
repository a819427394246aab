// Package services holds cross-cutting helpers shared by pipeline stages:
// the failure classification taxonomy and context keys used for structured
// logging correlation.
package services
