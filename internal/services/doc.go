// Package services holds cross-cutting helpers shared by the external tool
// wrappers and the stage implementations: the pipeline failure taxonomy
// (sentinel markers plus Wrap for stage-tagged errors) and context plumbing
// for run, stage, and correlation identifiers.
//
// Tool-specific command wrappers live in subpackages (micromamba, ...); they
// tag their failures with the sentinels defined here so the pipeline manager
// can classify required versus best-effort outcomes without string matching.
package services
